package node

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rvs/workflow-nodes/internal/model"
)

// PrepareBinaryData builds a binary handle for data. When mimeType is
// empty it is sniffed from the content.
func PrepareBinaryData(data []byte, fileName, mimeType string) model.BinaryData {
	detected := mimetype.Detect(data)
	if mimeType == "" {
		mimeType = detected.String()
	}

	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		ext = strings.TrimPrefix(detected.Extension(), ".")
	}

	return model.BinaryData{
		Data:          data,
		MimeType:      mimeType,
		FileName:      fileName,
		FileExtension: ext,
		FileSize:      len(data),
	}
}
