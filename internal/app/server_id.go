package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateInstanceID 生成 SDK 进程实例ID
// 优先使用环境变量IOTSDK_INSTANCE_ID，否则生成UUID
func GenerateInstanceID() string {
	if id := os.Getenv("IOTSDK_INSTANCE_ID"); id != "" {
		return id
	}

	// 格式：iotsdk-{hostname}-{uuid}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("iotsdk-%s-%s", hostname, shortUUID)
}
