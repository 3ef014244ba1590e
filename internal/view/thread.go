// Package view turns comment trees into flat, depth-annotated rows for
// clients and terminals. Trees are walked with explicit stacks, so thread
// depth is not bounded by the goroutine stack.
package view

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"plaza/internal/models"
)

// FlatComment 展平后的一行评论
type FlatComment struct {
	models.Comment
	Depth       int           `json:"depth"`
	Replies     int           `json:"replies"` // 全部后代数量
	Collapsed   bool          `json:"collapsed"`
	ContentHTML template.HTML `json:"content_html,omitempty"`
}

type frame struct {
	node  *models.CommentNode
	depth int
}

// descendants 统计每个节点的后代数量
func descendants(roots []*models.CommentNode) map[*models.CommentNode]int {
	var order []*models.CommentNode
	stack := append([]*models.CommentNode(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, n)
		stack = append(stack, n.Children...)
	}

	counts := make(map[*models.CommentNode]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		total := 0
		for _, child := range n.Children {
			total += 1 + counts[child]
		}
		counts[n] = total
	}
	return counts
}

// Flatten 按先序展开评论树，collapsed 中的节点保留自身、隐藏其后代
func Flatten(roots []*models.CommentNode, collapsed map[int64]bool) []FlatComment {
	counts := descendants(roots)
	out := make([]FlatComment, 0, len(counts))

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		folded := collapsed[f.node.ID] && len(f.node.Children) > 0
		out = append(out, FlatComment{
			Comment:   f.node.Comment,
			Depth:     f.depth,
			Replies:   counts[f.node],
			Collapsed: folded,
		})
		if folded {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
	return out
}

// CommentTree 带渲染后 HTML 的评论树节点，用于 JSON 输出
type CommentTree struct {
	models.Comment
	ContentHTML template.HTML  `json:"content_html"`
	Children    []*CommentTree `json:"children"`
}

// RenderTree 复制评论树并用 render 填充 content_html，按层迭代
func RenderTree(roots []*models.CommentNode, render func(string) template.HTML) []*CommentTree {
	type pair struct {
		src *models.CommentNode
		dst *CommentTree
	}
	out := make([]*CommentTree, len(roots))
	queue := make([]pair, 0, len(roots))
	for i, n := range roots {
		out[i] = &CommentTree{Comment: n.Comment, ContentHTML: render(n.Content)}
		queue = append(queue, pair{n, out[i]})
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		p.dst.Children = make([]*CommentTree, len(p.src.Children))
		for i, child := range p.src.Children {
			node := &CommentTree{Comment: child.Comment, ContentHTML: render(child.Content)}
			p.dst.Children[i] = node
			queue = append(queue, pair{child, node})
		}
	}
	return out
}

// WriteText 以缩进文本输出评论
func WriteText(w io.Writer, rows []FlatComment) error {
	for _, row := range rows {
		indent := strings.Repeat("  ", row.Depth)
		if _, err := fmt.Fprintf(w, "%s#%d %s · %s\n", indent, row.ID, row.Author, row.CreatedAt.Local().Format("2006-01-02 15:04")); err != nil {
			return err
		}
		for _, line := range strings.Split(row.Content, "\n") {
			if _, err := fmt.Fprintf(w, "%s  %s\n", indent, line); err != nil {
				return err
			}
		}
		if row.Collapsed {
			label := "replies"
			if row.Replies == 1 {
				label = "reply"
			}
			if _, err := fmt.Fprintf(w, "%s  [+%d %s]\n", indent, row.Replies, label); err != nil {
				return err
			}
		}
	}
	return nil
}
