// Package protocol 解析设备串口行协议：每行一个采样，格式为 RAW:<整数>。
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// RawPrefix 原始采样行前缀
const RawPrefix = "RAW:"

// ParseLine 解析一行文本；不匹配 RAW:<整数> 的行返回 ok=false（静默丢弃）。
// 只去除整行首尾空白，前缀与数字之间不允许空白。
func ParseLine(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, RawPrefix) {
		return 0, false
	}

	v, err := strconv.Atoi(line[len(RawPrefix):])
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatLine 生成一行 RAW 采样（模拟设备使用）
func FormatLine(v int) string {
	return fmt.Sprintf("%s%d", RawPrefix, v)
}
