package message

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// Level 消息严重级别，数值越大越严重
type Level int32

const (
	LevelInfo     Level = math.MinInt32
	LevelWarning  Level = 0
	LevelError    Level = math.MaxInt32 / 3
	LevelCritical Level = 2 * LevelError
)

// Levels 按严重程度排序的命名级别
var Levels = []Level{LevelInfo, LevelWarning, LevelError, LevelCritical}

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return strconv.FormatInt(int64(l), 10)
	}
}

// ParseLevel 解析级别名称（info|warning|warn|error|critical）或整数
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed message level %q", stream.ErrInvalidConfiguration, s)
	}
	return Level(n), nil
}

// MarshalText 实现 encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
