package hdf5

import (
	"fmt"

	"github.com/simdata/snapload/internal/message"
	"github.com/simdata/snapload/internal/object"
)

// SetAttr sets an attribute on this group, creating or replacing it.
// The value can be a scalar or slice of: int, int8-64, uint, uint8-64,
// float32, float64, string.
func (g *Group) SetAttr(name string, value interface{}) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if name == "" {
		return fmt.Errorf("attribute name cannot be empty")
	}

	attrMsg, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("creating attribute %q: %w", name, err)
	}

	// Load existing links and attributes so the rewrite keeps them
	if g.pendingLinks == nil {
		if err := g.loadExistingLinks(); err != nil {
			return fmt.Errorf("loading existing links: %w", err)
		}
	}
	if g.pendingAttrs == nil {
		if err := g.loadExistingAttrs(); err != nil {
			return fmt.Errorf("loading existing attributes: %w", err)
		}
	}

	// Replace an existing attribute of the same name
	replaced := false
	for i, attr := range g.pendingAttrs {
		if attr.Name == name {
			g.pendingAttrs[i] = attrMsg
			replaced = true
			break
		}
	}
	if !replaced {
		g.pendingAttrs = append(g.pendingAttrs, attrMsg)
	}

	return g.rewriteHeader()
}

// loadExistingAttrs loads existing attribute messages from the group's
// object header.
func (g *Group) loadExistingAttrs() error {
	g.pendingAttrs = make([]*message.Attribute, 0)

	if g.header == nil && g.file.reader != nil {
		header, err := object.Read(g.file.reader, g.addr)
		if err != nil {
			// New group with nothing written yet
			return nil
		}
		g.header = header
	}

	if g.header != nil {
		for _, msg := range g.header.GetMessages(message.TypeAttribute) {
			if attrMsg, ok := msg.(*message.Attribute); ok {
				g.pendingAttrs = append(g.pendingAttrs, attrMsg)
			}
		}
	}

	return nil
}
