package email

import "github.com/rvs/workflow-nodes/internal/node"

const attachmentPrefixHelp = `Prefix for name of the binary property to which to write the attachments. ` +
	`An index starting with 0 will be added. So if name is "attachment_" the first attachment is saved to "attachment_0"`

// Description returns the node's parameter schema.
func (n *Node) Description() node.Description {
	return node.Description{
		DisplayName: "RVS Imap loader",
		Name:        Type,
		Version:     2,
		Description: "Reads IMAP",
		Credentials: []node.CredentialRef{{Name: CredentialType, Required: true}},
		Properties: []node.Property{
			{
				DisplayName: "Mailbox Name",
				Name:        "mailbox",
				Type:        node.PropertyString,
				Default:     "INBOX",
			},
			{
				DisplayName: "Action",
				Name:        "postProcessAction",
				Type:        node.PropertyOptions,
				Default:     "read",
				Options: []node.PropertyOption{
					{Name: "Mark as Read", Value: "read"},
					{Name: "Nothing", Value: "nothing"},
				},
				Description: `What to do after the email has been received. ` +
					`If "nothing" gets selected it will be processed multiple times.`,
			},
			{
				DisplayName: "Download Attachments",
				Name:        "downloadAttachments",
				Type:        node.PropertyBoolean,
				Default:     false,
				DisplayOptions: &node.DisplayOptions{
					Show: map[string][]any{"format": {"simple"}},
				},
				Description: "Whether attachments of emails should be downloaded. " +
					"Only set if needed as it increases processing.",
			},
			{
				DisplayName: "Format",
				Name:        "format",
				Type:        node.PropertyOptions,
				Default:     "simple",
				Options: []node.PropertyOption{
					{
						Name:        "RAW",
						Value:       "raw",
						Description: "Returns the full email message data with body content in the raw field",
					},
					{
						Name:        "Resolved",
						Value:       "resolved",
						Description: "Returns the full email with all data resolved and attachments saved as binary data",
					},
					{
						Name:        "Simple",
						Value:       "simple",
						Description: "Returns the full email; do not use if you wish to gather inline attachments",
					},
				},
				Description: "The format to return the message in",
			},
			{
				DisplayName: "Property Prefix Name",
				Name:        "dataPropertyAttachmentsPrefixName",
				Type:        node.PropertyString,
				Default:     "attachment_",
				DisplayOptions: &node.DisplayOptions{
					Show: map[string][]any{"format": {"resolved"}},
				},
				Description: attachmentPrefixHelp,
			},
			{
				DisplayName: "Property Prefix Name",
				Name:        "dataPropertyAttachmentsPrefixName",
				Type:        node.PropertyString,
				Default:     "attachment_",
				DisplayOptions: &node.DisplayOptions{
					Show: map[string][]any{
						"format":              {"simple"},
						"downloadAttachments": {true},
					},
				},
				Description: attachmentPrefixHelp,
			},
			{
				DisplayName: "Options",
				Name:        "options",
				Type:        node.PropertyCollection,
				Default:     map[string]any{},
				Collection: []node.Property{
					{
						DisplayName: "Custom Email Rules",
						Name:        "customEmailConfig",
						Type:        node.PropertyString,
						Default:     `["UNSEEN"]`,
						Description: "Custom email fetching rules as a JSON array of search criteria",
					},
					{
						DisplayName: "Output Message UID",
						Name:        "outLastMessageUID",
						Type:        node.PropertyBoolean,
						Default:     false,
						Description: `Add to output message UID. To use it in next searches just add ["UID", "<uid>:*"].`,
					},
					{
						DisplayName: "Message Limit",
						Name:        "messageLimit",
						Type:        node.PropertyNumber,
						Default:     -1,
						Description: "Limit for emails. -1 is unlimited.",
					},
				},
			},
		},
	}
}
