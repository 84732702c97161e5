package zmachine

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Inspector: read-only machine introspection
// ---------------------------------------------------------------------------

// Inspector is the read-only view collaborators (the debugger, UIs) get of a
// machine. Everything it returns is a copy; nothing mutates the machine.
type Inspector struct {
	z *Machine
}

// Inspector returns the machine's read-only inspection view.
func (z *Machine) Inspector() *Inspector {
	return &Inspector{z: z}
}

// PropInfo describes one property of an object.
type PropInfo struct {
	Number int
	Size   int
	Data   []byte
}

// ObjectInfo is a structured summary of one object.
type ObjectInfo struct {
	Number  int
	Name    string
	Parent  int
	Sibling int
	Child   int
	Attrs   []int
	Props   []PropInfo
}

// ObjectNode is one node of the rendered object forest.
type ObjectNode struct {
	Number   int
	Name     string
	Children []*ObjectNode
}

// HeaderInfo formats the parsed header for display.
func (i *Inspector) HeaderInfo() string {
	h := i.z.header
	var sb strings.Builder
	fmt.Fprintf(&sb, "version:       %d\n", h.Version)
	fmt.Fprintf(&sb, "release:       %d\n", h.Release)
	fmt.Fprintf(&sb, "serial:        %s\n", string(h.Serial[:]))
	fmt.Fprintf(&sb, "checksum:      0x%04x\n", h.Checksum)
	fmt.Fprintf(&sb, "file length:   %d\n", h.FileLength)
	fmt.Fprintf(&sb, "initial pc:    0x%04x\n", h.InitialPC)
	fmt.Fprintf(&sb, "static base:   0x%04x\n", h.StaticBase)
	fmt.Fprintf(&sb, "high base:     0x%04x\n", h.HighBase)
	fmt.Fprintf(&sb, "dictionary:    0x%04x\n", h.DictionaryBase)
	fmt.Fprintf(&sb, "objects:       0x%04x\n", h.ObjectTableBase)
	fmt.Fprintf(&sb, "globals:       0x%04x\n", h.GlobalsBase)
	fmt.Fprintf(&sb, "abbreviations: 0x%04x\n", h.AbbreviationsBase)
	return sb.String()
}

// PC returns the current program counter.
func (i *Inspector) PC() int {
	return i.z.pc
}

// State returns the machine state.
func (i *Inspector) State() State {
	return i.z.state
}

// FrameCount returns the call-stack depth.
func (i *Inspector) FrameCount() int {
	return len(i.z.frames)
}

// ObjectCount returns the number of objects in the table.
func (i *Inspector) ObjectCount() int {
	return i.z.ObjectCount()
}

// ObjectName returns an object's short name, with placeholders for the null
// object and the nameless.
func (i *Inspector) ObjectName(obj int) string {
	if obj == 0 {
		return "(null object)"
	}
	name := i.z.ShortName(obj)
	if name == "" {
		return "(no name)"
	}
	return name
}

// Object returns a structured summary of one object.
func (i *Inspector) Object(obj int) ObjectInfo {
	info := ObjectInfo{
		Number:  obj,
		Name:    i.ObjectName(obj),
		Parent:  i.z.Parent(obj),
		Sibling: i.z.Sibling(obj),
		Child:   i.z.Child(obj),
	}
	for attr := 0; attr < 32; attr++ {
		if i.z.Attr(obj, attr) {
			info.Attrs = append(info.Attrs, attr)
		}
	}
	for n := i.z.NextProp(obj, 0); n != 0; n = i.z.NextProp(obj, n) {
		addr := i.z.PropAddr(obj, n)
		size := i.z.PropLen(addr)
		info.Props = append(info.Props, PropInfo{
			Number: n,
			Size:   size,
			Data:   i.z.mem.Slice(addr, addr+size),
		})
	}
	return info
}

// Room returns the player's current location per global 16.
func (i *Inspector) Room() (int, string) {
	obj := int(i.z.readGlobal(globalLocation))
	return obj, i.ObjectName(obj)
}

// FindObject searches the object table for a short name, case-insensitively.
// Returns 0 when no object matches.
func (i *Inspector) FindObject(name string) int {
	count := i.z.ObjectCount()
	for obj := 1; obj <= count; obj++ {
		if strings.EqualFold(i.z.ShortName(obj), name) {
			return obj
		}
	}
	return 0
}

// ObjectTree builds the object forest rooted at the null object.
func (i *Inspector) ObjectTree() *ObjectNode {
	root := &ObjectNode{Number: 0, Name: i.ObjectName(0)}
	count := i.z.ObjectCount()
	for obj := 1; obj <= count; obj++ {
		if i.z.Parent(obj) == 0 {
			root.Children = append(root.Children, i.subtree(obj))
		}
	}
	return root
}

func (i *Inspector) subtree(obj int) *ObjectNode {
	node := &ObjectNode{Number: obj, Name: i.ObjectName(obj)}
	for child := i.z.Child(obj); child != 0; child = i.z.Sibling(child) {
		node.Children = append(node.Children, i.subtree(child))
	}
	return node
}

// RenderTree renders the object forest as an indented text tree.
func (i *Inspector) RenderTree() string {
	var sb strings.Builder
	root := i.ObjectTree()
	for n, child := range root.Children {
		renderNode(&sb, child, "", n == len(root.Children)-1, true)
	}
	return sb.String()
}

func renderNode(sb *strings.Builder, node *ObjectNode, indent string, isLast, isRoot bool) {
	if isRoot {
		fmt.Fprintf(sb, "%s (%d)\n", node.Name, node.Number)
	} else {
		glyph := "├── "
		if isLast {
			glyph = "└── "
		}
		fmt.Fprintf(sb, "%s%s%s (%d)\n", indent, glyph, node.Name, node.Number)
		if isLast {
			indent += "    "
		} else {
			indent += "│   "
		}
	}
	for n, child := range node.Children {
		renderNode(sb, child, indent, n == len(node.Children)-1, false)
	}
}

// Words lists every dictionary entry in table order.
func (i *Inspector) Words() []string {
	d := i.z.loadDictionary()
	words := make([]string, 0, d.entryCount)
	for n := 0; n < d.entryCount; n++ {
		addr := d.entriesBase + n*d.entryLength
		text, _ := decodeZString(i.z.mem, i.z.header.AbbreviationsBase, addr, true)
		words = append(words, text)
	}
	return words
}

// MemoryWindow returns a copy of n bytes starting at addr, clamped to the
// file.
func (i *Inspector) MemoryWindow(addr, n int) []byte {
	if addr < 0 {
		addr = 0
	}
	end := addr + n
	if end > i.z.mem.Len() {
		end = i.z.mem.Len()
	}
	if addr >= end {
		return nil
	}
	return i.z.mem.Slice(addr, end)
}
