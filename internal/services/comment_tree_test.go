package services

import (
	"reflect"
	"testing"
	"time"

	"plaza/internal/models"
)

func ptr(v int64) *int64 { return &v }

func c(id int64, parent *int64) models.Comment {
	return models.Comment{
		ID:              id,
		PostID:          1,
		ParentCommentID: parent,
		Content:         "comment",
		UserID:          "u",
		Author:          "a",
		CreatedAt:       time.Date(2024, 5, 1, 12, 0, int(id), 0, time.UTC),
	}
}

func ids(nodes []*models.CommentNode) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestBuildCommentTreeNested(t *testing.T) {
	roots := BuildCommentTree([]models.Comment{
		c(1, nil), c(2, ptr(1)), c(3, ptr(1)), c(4, ptr(2)),
	})

	if len(roots) != 1 || roots[0].ID != 1 {
		t.Fatalf("Expected single root 1, got %v", ids(roots))
	}
	if got := ids(roots[0].Children); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Errorf("Expected children [2 3], got %v", got)
	}
	if got := ids(roots[0].Children[0].Children); !reflect.DeepEqual(got, []int64{4}) {
		t.Errorf("Expected children of 2 to be [4], got %v", got)
	}
	if len(roots[0].Children[1].Children) != 0 {
		t.Errorf("Expected comment 3 to have no children")
	}
}

func TestBuildCommentTreeDropsDanglingParent(t *testing.T) {
	roots := BuildCommentTree([]models.Comment{c(1, ptr(99))})
	if len(roots) != 0 {
		t.Fatalf("Expected empty forest, got %v", ids(roots))
	}

	// 悬空回复的子孙同样不可达
	roots = BuildCommentTree([]models.Comment{c(1, nil), c(2, ptr(99)), c(3, ptr(2))})
	if got := ids(roots); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("Expected roots [1], got %v", got)
	}
	if CountNodes(roots) != 1 {
		t.Errorf("Expected 1 reachable node, got %d", CountNodes(roots))
	}
}

func TestBuildCommentTreePreservesInputOrder(t *testing.T) {
	// 输入不是按 id 排序的，输出仍按输入顺序
	roots := BuildCommentTree([]models.Comment{
		c(5, nil), c(2, nil), c(9, ptr(5)), c(7, ptr(5)), c(3, nil), c(8, ptr(5)),
	})
	if got := ids(roots); !reflect.DeepEqual(got, []int64{5, 2, 3}) {
		t.Errorf("Expected roots [5 2 3], got %v", got)
	}
	if got := ids(roots[0].Children); !reflect.DeepEqual(got, []int64{9, 7, 8}) {
		t.Errorf("Expected children [9 7 8], got %v", got)
	}
}

func TestBuildCommentTreeChildBeforeParent(t *testing.T) {
	// 子评论出现在父评论之前仍能挂接
	roots := BuildCommentTree([]models.Comment{c(2, ptr(1)), c(1, nil)})
	if got := ids(roots); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("Expected roots [1], got %v", got)
	}
	if got := ids(roots[0].Children); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("Expected children [2], got %v", got)
	}
}

func TestBuildCommentTreeIdempotent(t *testing.T) {
	input := []models.Comment{c(1, nil), c(2, ptr(1)), c(3, nil), c(4, ptr(3)), c(5, ptr(4))}
	first := BuildCommentTree(input)
	second := BuildCommentTree(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical trees for identical input")
	}
	if input[1].ParentCommentID == nil || *input[1].ParentCommentID != 1 {
		t.Errorf("Expected input to be left untouched")
	}
}

func TestBuildCommentTreeEmpty(t *testing.T) {
	roots := BuildCommentTree(nil)
	if roots == nil || len(roots) != 0 {
		t.Errorf("Expected empty non-nil forest, got %v", roots)
	}
}

func TestBuildCommentTreeEveryNodePlacedOnce(t *testing.T) {
	input := []models.Comment{c(1, nil), c(2, ptr(1)), c(3, ptr(2)), c(4, ptr(3)), c(5, nil), c(6, ptr(5)), c(7, ptr(42))}
	roots := BuildCommentTree(input)

	seen := map[int64]int{}
	stack := append([]*models.CommentNode(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen[n.ID]++
		stack = append(stack, n.Children...)
	}
	for id := int64(1); id <= 6; id++ {
		if seen[id] != 1 {
			t.Errorf("Expected comment %d exactly once, got %d", id, seen[id])
		}
	}
	if seen[7] != 0 {
		t.Errorf("Expected dangling comment 7 to be dropped")
	}
}

func TestBuildCommentTreeDuplicateAndSelfParent(t *testing.T) {
	roots := BuildCommentTree([]models.Comment{c(1, nil), c(1, nil), c(2, ptr(1)), c(3, ptr(3))})
	if got := ids(roots); !reflect.DeepEqual(got, []int64{1, 1}) {
		t.Fatalf("Expected roots [1 1], got %v", got)
	}
	if len(roots[0].Children) != 1 || len(roots[1].Children) != 0 {
		t.Errorf("Expected replies to attach to the first record with the id")
	}
}

func TestBuildCommentTreeDeepThread(t *testing.T) {
	const depth = 100000
	input := make([]models.Comment, depth)
	input[0] = c(1, nil)
	for i := 1; i < depth; i++ {
		input[i] = c(int64(i+1), ptr(int64(i)))
	}
	roots := BuildCommentTree(input)
	if n := CountNodes(roots); n != depth {
		t.Errorf("Expected %d nodes, got %d", depth, n)
	}
}
