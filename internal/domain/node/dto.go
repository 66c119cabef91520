package node

import (
	"encoding/json"
	"time"
)

// The DTO types are the documented boundary for the server layer: ids
// become strings, dates become RFC3339Nano UTC, values become their
// JSON wire form. The core itself never hands transport-encoded data
// to the engines.

type PropertyEntryDTO struct {
	Value         json.RawMessage `json:"value"`
	Order         int             `json:"order"`
	FieldSystemID string          `json:"fieldSystemId"`
	FieldName     string          `json:"fieldName"`
}

type SupertagRefDTO struct {
	SystemID string `json:"systemId"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
}

type AssembledNodeDTO struct {
	ID         string                        `json:"id"`
	Content    *string                       `json:"content,omitempty"`
	CreatedAt  string                        `json:"createdAt"`
	UpdatedAt  string                        `json:"updatedAt"`
	DeletedAt  *string                       `json:"deletedAt,omitempty"`
	Properties map[string][]PropertyEntryDTO `json:"properties"`
	Supertags  []SupertagRefDTO              `json:"supertags"`
}

// ToDTO converts an assembled node to its transport-safe form.
func ToDTO(a *AssembledNode) *AssembledNodeDTO {
	if a == nil {
		return nil
	}
	out := &AssembledNodeDTO{
		ID:         a.ID,
		Content:    a.Content,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Properties: make(map[string][]PropertyEntryDTO, len(a.Properties)),
		Supertags:  make([]SupertagRefDTO, 0, len(a.Supertags)),
	}
	if a.DeletedAt != nil {
		deleted := a.DeletedAt.UTC().Format(time.RFC3339Nano)
		out.DeletedAt = &deleted
	}
	for name, entries := range a.Properties {
		converted := make([]PropertyEntryDTO, 0, len(entries))
		for _, e := range entries {
			data, err := EncodeValue(e.Value)
			if err != nil {
				data = []byte("null")
			}
			converted = append(converted, PropertyEntryDTO{
				Value:         json.RawMessage(data),
				Order:         e.Order,
				FieldSystemID: e.FieldSystemID,
				FieldName:     e.FieldName,
			})
		}
		out.Properties[name] = converted
	}
	for _, s := range a.Supertags {
		out.Supertags = append(out.Supertags, SupertagRefDTO{
			SystemID: s.SystemID,
			Content:  s.Content,
			Order:    s.Order,
		})
	}
	return out
}
