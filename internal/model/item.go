package model

// Item is one unit of data flowing between workflow nodes. Nodes receive
// a list of items and emit lists of items.
type Item struct {
	// JSON holds the structured payload of the item.
	JSON map[string]any `json:"json"`

	// Binary holds named binary attachments (e.g., "attachment_0").
	Binary map[string]BinaryData `json:"binary,omitempty"`

	// PairedItem links an output item to the input item it was derived from.
	PairedItem *PairedItem `json:"pairedItem,omitempty"`
}

// PairedItem references an input item by index.
type PairedItem struct {
	Item int `json:"item"`
}

// BinaryData is an opaque binary payload embedded in an Item.
type BinaryData struct {
	Data          []byte `json:"data"`
	MimeType      string `json:"mimeType"`
	FileName      string `json:"fileName,omitempty"`
	FileExtension string `json:"fileExtension,omitempty"`
	FileSize      int    `json:"fileSize"`
}

// NewItem returns an item with the given payload paired to input index.
// A negative index leaves the item unpaired.
func NewItem(json map[string]any, index int) Item {
	item := Item{JSON: json}
	if item.JSON == nil {
		item.JSON = map[string]any{}
	}
	if index >= 0 {
		item.PairedItem = &PairedItem{Item: index}
	}
	return item
}

// Clone returns a shallow copy of the item with its own JSON and Binary
// maps, so top-level keys can be set without touching the original.
func (i Item) Clone() Item {
	out := Item{PairedItem: i.PairedItem}

	out.JSON = make(map[string]any, len(i.JSON))
	for k, v := range i.JSON {
		out.JSON[k] = v
	}

	if i.Binary != nil {
		out.Binary = make(map[string]BinaryData, len(i.Binary))
		for k, v := range i.Binary {
			out.Binary[k] = v
		}
	}

	return out
}

// Flatten concatenates per-item result lists in order.
func Flatten(lists [][]Item) []Item {
	n := 0
	for _, l := range lists {
		n += len(l)
	}

	out := make([]Item, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
