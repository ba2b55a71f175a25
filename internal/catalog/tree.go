package catalog

// TreeNode is the display-oriented projection of the catalog. Visibility of a
// group is derived from its descendants, never stored.
type TreeNode struct {
	Key      string     `json:"key"`
	Kind     Kind       `json:"kind"`
	Label    string     `json:"label"`
	Children []TreeNode `json:"children,omitempty"`
}

// BuildTree assembles navigation nodes into a tree, keeping only nodes that
// are themselves in the effective set or have a visible descendant. Action
// capabilities never appear in the navigation tree.
func (c *Catalog) BuildTree(effective map[string]struct{}) []TreeNode {
	children := make(map[string][]string)
	var roots []string
	for _, key := range c.order {
		node := c.nodes[key]
		if node.Kind != KindNavigation {
			continue
		}
		if node.Parent == "" {
			roots = append(roots, key)
			continue
		}
		children[node.Parent] = append(children[node.Parent], key)
	}

	var build func(key string) (TreeNode, bool)
	build = func(key string) (TreeNode, bool) {
		node := c.nodes[key]
		tn := TreeNode{Key: node.Key, Kind: node.Kind, Label: node.Label}
		_, visible := effective[key]
		for _, childKey := range children[key] {
			child, ok := build(childKey)
			if ok {
				tn.Children = append(tn.Children, child)
				visible = true
			}
		}
		return tn, visible
	}

	var tree []TreeNode
	for _, root := range roots {
		if node, ok := build(root); ok {
			tree = append(tree, node)
		}
	}
	return tree
}
