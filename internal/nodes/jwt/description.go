package jwt

import "github.com/rvs/workflow-nodes/internal/node"

var bothOperations = &node.DisplayOptions{
	Show: map[string][]any{"operation": {string(OperationGenerate), string(OperationVerify)}},
}

// Description returns the node's parameter schema.
func (n *Node) Description() node.Description {
	return node.Description{
		DisplayName: "RVS JWT",
		Name:        Type,
		Version:     1,
		Description: "Simple tool to generate and verify JWT Tokens",
		Properties: []node.Property{
			{
				DisplayName: "Operation",
				Name:        "operation",
				Type:        node.PropertyOptions,
				Default:     string(OperationVerify),
				Options: []node.PropertyOption{
					{Name: "Generate JWT", Value: string(OperationGenerate), Description: "Generate JWT Token"},
					{Name: "Verify JWT", Value: string(OperationVerify), Description: "Verify Jwt Token"},
				},
			},
			{
				DisplayName:    "Payload",
				Name:           "payload",
				Type:           node.PropertyString,
				Default:        "",
				Required:       true,
				Placeholder:    "Object or string",
				Description:    "JSON data object",
				DisplayOptions: bothOperations,
			},
			{
				DisplayName:    "Target Object Name",
				Name:           "targetObjectName",
				Type:           node.PropertyString,
				Default:        "result",
				Required:       true,
				Placeholder:    "result object key",
				Description:    "Name of result object",
				DisplayOptions: bothOperations,
			},
			{
				DisplayName:    "Private Key",
				Name:           "privateKey",
				Type:           node.PropertyString,
				Default:        "",
				Description:    "Private Key to use in sign algorithm",
				DisplayOptions: bothOperations,
			},
			{
				DisplayName: "Options",
				Name:        "options",
				Type:        node.PropertyCollection,
				Default:     map[string]any{},
				Placeholder: "Add modifiers",
				DisplayOptions: &node.DisplayOptions{
					Show: map[string][]any{"operation": {string(OperationVerify)}},
				},
				Collection: []node.Property{
					{
						DisplayName: "Raise Exception",
						Name:        "raiseException",
						Type:        node.PropertyBoolean,
						Default:     false,
						Description: "Whether raise exception if error or return object",
					},
					{
						DisplayName: "Extend input object",
						Name:        "extendInputObject",
						Type:        node.PropertyBoolean,
						Default:     true,
						Description: "Whether extend input object",
					},
				},
			},
		},
	}
}
