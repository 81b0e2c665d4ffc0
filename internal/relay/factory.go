package relay

import (
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// BlobKey 数据块源对应的列表键
func BlobKey(prefix, source string) string {
	return prefix + source
}

// BlobFactory 让 SDK 打开的数据块源改从中继读取
func BlobFactory(q Queue, prefix string, opts Options) sdk.BlobSourceFactory {
	return func(desc datablob.Description, _ datablob.StreamProperties) (stream.Source[*datablob.DataBlob], error) {
		return NewBlobSource(q, BlobKey(prefix, desc.Name), opts), nil
	}
}
