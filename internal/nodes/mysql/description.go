package mysql

import "github.com/rvs/workflow-nodes/internal/node"

func showFor(ops ...Operation) *node.DisplayOptions {
	values := make([]any, len(ops))
	for i, op := range ops {
		values[i] = string(op)
	}
	return &node.DisplayOptions{Show: map[string][]any{"operation": values}}
}

// Description returns the node's parameter schema.
func (n *Node) Description() node.Description {
	return node.Description{
		DisplayName: "RVS MySQL",
		Name:        Type,
		Version:     1,
		Description: "Get, add and update data in MySQL",
		Credentials: []node.CredentialRef{{Name: CredentialType, Required: true}},
		Properties: []node.Property{
			{
				DisplayName: "Operation",
				Name:        "operation",
				Type:        node.PropertyOptions,
				Default:     string(OperationInsert),
				Options: []node.PropertyOption{
					{Name: "Execute Query", Value: string(OperationExecuteQuery), Description: "Execute an SQL query"},
					{Name: "Insert", Value: string(OperationInsert), Description: "Insert rows in database"},
					{Name: "Update", Value: string(OperationUpdate), Description: "Update rows in database"},
					{Name: "Prepared Statement", Value: string(OperationPreparedStatement), Description: "Execute a prepared statement"},
				},
			},
			{
				DisplayName:    "Query",
				Name:           "query",
				Type:           node.PropertyString,
				Default:        "",
				Required:       true,
				Placeholder:    "SELECT id, name FROM product WHERE id < 40",
				Description:    "The SQL query to execute",
				DisplayOptions: showFor(OperationExecuteQuery, OperationPreparedStatement),
			},
			{
				DisplayName:    "Table",
				Name:           "table",
				Type:           node.PropertyString,
				Default:        "",
				Required:       true,
				Placeholder:    "table_name",
				Description:    "Name of the table to write data to",
				DisplayOptions: showFor(OperationInsert, OperationUpdate),
			},
			{
				DisplayName: "Update Key",
				Name:        "updateKey",
				Type:        node.PropertyString,
				Default:     "id",
				Required:    true,
				Description: `Name of the property which decides which rows in the database should be updated. ` +
					`Normally that would be "id".`,
				DisplayOptions: showFor(OperationUpdate),
			},
			{
				DisplayName:    "Columns",
				Name:           "columns",
				Type:           node.PropertyString,
				Default:        "",
				Placeholder:    "id,name,description",
				Description:    "Comma-separated list of the properties which should used as columns",
				DisplayOptions: showFor(OperationInsert, OperationUpdate, OperationPreparedStatement),
			},
			{
				DisplayName: "Options",
				Name:        "options",
				Type:        node.PropertyCollection,
				Default:     map[string]any{},
				Placeholder: "Add modifiers",
				Collection: []node.Property{
					{
						DisplayName: "Ignore",
						Name:        "ignore",
						Type:        node.PropertyBoolean,
						Default:     true,
						Description: "Whether to ignore any ignorable errors that occur while executing the INSERT statement",
					},
					{
						DisplayName: "Priority",
						Name:        "priority",
						Type:        node.PropertyOptions,
						Default:     PriorityLow,
						Options: []node.PropertyOption{
							{Name: "Low Priority", Value: PriorityLow, Description: "Delays execution of the INSERT until no other clients are reading from the table"},
							{Name: "High Priority", Value: PriorityHigh, Description: "Overrides the effect of the --low-priority-updates option"},
						},
					},
					{
						DisplayName: "Bulk",
						Name:        "bulk",
						Type:        node.PropertyBoolean,
						Default:     false,
						Description: "Whether to send all items as one flat value list to a single placeholder",
					},
					{
						DisplayName: "Support Big Numbers",
						Name:        "supportBigNumbers",
						Type:        node.PropertyBoolean,
						Default:     false,
						Description: "Whether integers outside the double precision range are returned as strings",
					},
				},
			},
		},
	}
}
