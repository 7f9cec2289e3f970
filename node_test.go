package underlog

import "testing"

func TestNode_Clone(t *testing.T) {
	t.Parallel()

	orig := &Node{
		Kind:  KindHeading,
		Attrs: map[string]string{"level": "2", "numbered": "true"},
		Children: []*Node{
			newTextNode("Section title"),
		},
	}

	clone := orig.Clone()
	clone.setAttr("level", "3")
	clone.Children[0].setAttr("content", "mutated")
	clone.Children = append(clone.Children, newTextNode("extra"))

	if got := orig.Attr("level"); got != "2" {
		t.Errorf("original level = %q after mutating clone", got)
	}
	if got := orig.textChild(); got != "Section title" {
		t.Errorf("original text = %q after mutating clone", got)
	}
	if len(orig.Children) != 1 {
		t.Errorf("original has %d children after appending to clone", len(orig.Children))
	}

	var nilNode *Node
	if nilNode.Clone() != nil {
		t.Error("cloning a nil node should return nil")
	}
}
