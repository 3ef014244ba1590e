package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseID 解析路径中的正整数 id
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ParseIDList 解析 "3,7,12" 形式的 id 列表，空字符串返回空集合
func ParseIDList(s string) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseID(part)
		if err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, nil
}
