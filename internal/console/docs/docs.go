// Package docs 控制台 Swagger 文档（swag 格式）
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/api/v1/info": {
			"get": {
				"tags": [
					"控制台"
				],
				"summary": "SDK 信息",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/v1/verbosity": {
			"put": {
				"tags": [
					"控制台"
				],
				"summary": "调整详细程度",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"description": "{\"verbosity\": 150}",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/api/v1/sources": {
			"get": {
				"tags": [
					"数据块"
				],
				"summary": "可用数据块源",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/v1/streams": {
			"get": {
				"tags": [
					"控制台"
				],
				"summary": "打开的流",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/v1/blobs": {
			"post": {
				"tags": [
					"数据块"
				],
				"summary": "打开数据块源",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"description": "{\"name\": \"\", \"rate\": 30}",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/api/v1/blobs/{id}": {
			"delete": {
				"tags": [
					"数据块"
				],
				"summary": "关闭数据块源",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "流 ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/v1/blobs/{id}/streaming": {
			"put": {
				"tags": [
					"数据块"
				],
				"summary": "开关数据块推流",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "流 ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "{\"running\": true}",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/api/v1/blobs/{id}/next": {
			"get": {
				"tags": [
					"数据块"
				],
				"summary": "拉取下一个数据块",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"204": {
						"description": "超时"
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "流 ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "等待时长，如 500ms，上限 5s",
						"name": "timeout",
						"in": "query"
					}
				]
			}
		},
		"/api/v1/messages/streaming": {
			"put": {
				"tags": [
					"日志消息"
				],
				"summary": "开关日志消息",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"description": "{\"running\": true}",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/api/v1/messages/next": {
			"get": {
				"tags": [
					"日志消息"
				],
				"summary": "拉取下一条日志消息",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"204": {
						"description": "超时"
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "等待时长，如 500ms，上限 5s",
						"name": "timeout",
						"in": "query"
					}
				]
			}
		},
		"/api/v1/messages/pending": {
			"get": {
				"tags": [
					"日志消息"
				],
				"summary": "取出排队的日志消息",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "最多条数（0 为全部）",
						"name": "max",
						"in": "query"
					}
				]
			}
		},
		"/api/v1/messages/level": {
			"put": {
				"tags": [
					"日志消息"
				],
				"summary": "设置日志消息最低级别",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"description": "{\"level\": \"warning\"}",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				]
			}
		}
	}
}`

// SwaggerInfo 文档元信息
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "IoT SDK Console",
	Description:      "设备 SDK 事件流检查控制台",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
