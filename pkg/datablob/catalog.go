package datablob

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// Description 可用数据块源的描述
type Description struct {
	Name string `yaml:"name" json:"name"`
}

// Catalog 设备提供的数据块源列表（有序）
type Catalog []Description

type catalogFile struct {
	Sources []Description `yaml:"sources"`
}

// DefaultCatalog 空设备的两个数据块源
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "/iotsdk/null/DataBlobSource/1"},
		{Name: "/iotsdk/null/DataBlobSource/2"},
	}
}

// ParseCatalog 解析 YAML 目录：
//
//	sources:
//	  - name: /device/camera/left
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", stream.ErrInvalidConfiguration, err)
	}
	cat := Catalog(f.Sources)
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// LoadCatalog 从文件加载目录
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Validate 目录非空、名称非空且不重复
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: empty data blob catalog", stream.ErrInvalidConfiguration)
	}
	seen := make(map[string]struct{}, len(c))
	for i, d := range c {
		if d.Name == "" {
			return fmt.Errorf("%w: catalog entry %d has no name", stream.ErrInvalidConfiguration, i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate catalog entry %q", stream.ErrInvalidConfiguration, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// Names 按顺序返回所有源名称
func (c Catalog) Names() []string {
	out := make([]string, len(c))
	for i, d := range c {
		out[i] = d.Name
	}
	return out
}

// Resolve 按名称查找；空名称返回第一个源
func (c Catalog) Resolve(name string) (Description, error) {
	if len(c) == 0 {
		return Description{}, fmt.Errorf("%w: empty data blob catalog", stream.ErrInvalidConfiguration)
	}
	if name == "" {
		return c[0], nil
	}
	for _, d := range c {
		if d.Name == name {
			return d, nil
		}
	}
	return Description{}, fmt.Errorf("%w: unknown data blob source %q", stream.ErrInvalidConfiguration, name)
}
