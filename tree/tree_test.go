package tree

import (
	"bytes"
	"testing"
)

const (
	tree2 = "((a:1,b:2)ab#1:3,c:1)root:0;"
	tree3 = "(a:1,b:2,c:0.5);"
)

func TestParseNamedInternal(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.NNodes() != 5 {
		tst.Fatal("Expected 5 nodes, got", t.NNodes())
	}
	if t.Name != "root" || t.Id != 0 {
		tst.Error("Wrong root:", t.LongString())
	}
	ab := t.NodeByName("ab")
	if ab == nil || ab.Class != 1 || ab.BranchLength != 3 {
		tst.Fatal("Wrong internal node:", ab)
	}
	if t.NLeaves() != 3 {
		tst.Error("Expected 3 leaves, got", t.NLeaves())
	}
	for i, name := range []string{"a", "b", "c"} {
		if t.NodeByName(name).LeafId != i {
			tst.Error("Wrong leaf id for", name)
		}
	}
	tst.Log(t.FullString())
}

func TestNodeOrder(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	order := t.NodeOrder()
	if len(order) != t.NNodes() {
		tst.Fatal("Wrong order length", len(order))
	}
	if order[len(order)-1] != t.Node {
		tst.Error("Root should be the last node")
	}
	seen := make(map[*Node]bool)
	for _, node := range order {
		for _, child := range node.ChildNodes() {
			if !seen[child] {
				tst.Error("Child", child.Name, "after parent", node.Name)
			}
		}
		seen[node] = true
	}
}

func TestSibling(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	a := t.NodeByName("a")
	s, err := a.Sibling()
	if err != nil || s.Name != "b" {
		tst.Error("Wrong sibling of a:", s, err)
	}
	c := t.NodeByName("c")
	s, err = c.Sibling()
	if err != nil || s.Name != "ab" {
		tst.Error("Wrong sibling of c:", s, err)
	}
	if _, err = t.Sibling(); err != ErrRoot {
		tst.Error("Expected ErrRoot, got", err)
	}
	if !t.IsBinary() {
		tst.Error("Tree should be binary")
	}

	t3, err := ParseNewick(bytes.NewBufferString(tree3))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t3.IsBinary() {
		tst.Error("Tree should not be binary")
	}
	if _, err = t3.NodeByName("a").Sibling(); err != ErrNonBinary {
		tst.Error("Expected ErrNonBinary, got", err)
	}
}

func TestParseErrors(tst *testing.T) {
	for _, s := range []string{"(a,b));", "(a:x,b);", "(a:-1,b);"} {
		if _, err := ParseNewick(bytes.NewBufferString(s)); err == nil {
			tst.Error("Expected error for", s)
		}
	}
}

func TestCopy(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	c := t.Copy()
	if c.NNodes() != t.NNodes() || c.Id != t.Id {
		tst.Fatal("Wrong copy:", c)
	}
	for i, node := range t.Nodes() {
		cnode := c.Nodes()[i]
		if cnode == node {
			tst.Error("Node", i, "is shared between copies")
		}
		if cnode.Name != node.Name || cnode.BranchLength != node.BranchLength || cnode.Class != node.Class {
			tst.Error("Node", i, "differs:", cnode.LongString(), node.LongString())
		}
	}
	c.NodeByName("a").BranchLength = 10
	if t.NodeByName("a").BranchLength != 1 {
		tst.Error("Changing copy modifies original")
	}
	if c.NodeOrder()[c.NNodes()-1] != c.Node {
		tst.Error("Root of the copy is not the last in postorder")
	}
}
