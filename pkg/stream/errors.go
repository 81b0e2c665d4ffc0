package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration 配置非法（速率非正、级别无法解析等），在配置时立即返回
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidHandle 控制器已关闭或从未构造
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInternalFault 生产者或投递路径内部异常，控制器进入故障态
	ErrInternalFault = errors.New("internal fault")

	// ErrCloseFromCallback 在推模式回调内关闭自身控制器（回调运行在要等待的生产者协程上）
	ErrCloseFromCallback = fmt.Errorf("%w: Close called from a stream callback", ErrInvalidConfiguration)
)
