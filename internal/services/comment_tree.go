package services

import "plaza/internal/models"

// BuildCommentTree 把按时间升序的扁平评论列表组装成树。
// 根节点和同级节点保持输入顺序；父评论不在列表中的回复会被丢弃。
// 同一 id 出现多次时以第一次为准挂接子节点。
func BuildCommentTree(comments []models.Comment) []*models.CommentNode {
	nodes := make([]*models.CommentNode, len(comments))
	byID := make(map[int64]*models.CommentNode, len(comments))
	for i := range comments {
		node := &models.CommentNode{Comment: comments[i], Children: []*models.CommentNode{}}
		nodes[i] = node
		if _, dup := byID[node.ID]; !dup {
			byID[node.ID] = node
		}
	}

	roots := []*models.CommentNode{}
	for _, node := range nodes {
		if node.ParentCommentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := byID[*node.ParentCommentID]
		if !ok || parent == node {
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// CountNodes 统计树中的节点总数
func CountNodes(roots []*models.CommentNode) int {
	n := 0
	stack := append([]*models.CommentNode(nil), roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, node.Children...)
	}
	return n
}
