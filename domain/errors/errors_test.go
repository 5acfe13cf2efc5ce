package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/wireformat"
)

func TestCode_Classification(t *testing.T) {
	assert.True(t, CodeSuccess.IsSuccess())
	assert.False(t, CodeSuccess.IsError())
	assert.True(t, CodeTimeout.IsError())
	assert.True(t, Code(5).IsInfo())
	assert.True(t, Code(-100).IsReserved())
	assert.True(t, Code(-999).IsReserved())
	assert.False(t, Code(-1000).IsReserved())
	assert.False(t, CodeDiskFull.IsReserved())
}

func TestCode_Message(t *testing.T) {
	assert.Equal(t, "Timeout", CodeTimeout.String())
	assert.Equal(t, "タイムアウト", CodeTimeout.Message("ja-JP"))
	assert.Equal(t, "プラグインが見つかりません", CodePluginNotFound.Message("ja"))
	assert.Equal(t, "Plugin not found", CodePluginNotFound.Message("fr-FR"))
	assert.Equal(t, "Plugin not found", CodePluginNotFound.Message("not a tag!"))

	assert.Equal(t, "Reserved error code", Code(-150).String())
	assert.Equal(t, "Success", Code(7).String())
	assert.Equal(t, "Unknown error", Code(-1234).String())
	assert.Equal(t, "不明なエラー", Code(-1234).Message("ja-JP"))
}

func TestPluginError_IsCode(t *testing.T) {
	err := Wrap(CodeIO, "read state", fmt.Errorf("disk gone"))

	assert.True(t, stdErrors.Is(err, CodeIO))
	assert.False(t, stdErrors.Is(err, CodeTimeout))
	assert.Equal(t, "read state: disk gone", err.Error())
	assert.Equal(t, CodeIO, CodeOf(err))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, CodeIO, CodeOf(wrapped))

	assert.Nil(t, Wrap(CodeIO, "noop", nil))
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrInvalidHandle)
	assert.True(t, stdErrors.Is(err, ErrInvalidHandle))
	assert.True(t, stdErrors.Is(err, CodeInvalidParameter))
	assert.Equal(t, CodeInvalidParameter, CodeOf(err))

	assert.Equal(t, CodeInvalidState, CodeOf(ErrInvalidTransition))
	assert.Equal(t, CodePluginLoadFailed, CodeOf(Wrap(CodePluginLoadFailed, "create_plugin", ErrMissingEntryPoint)))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want Code
	}{
		{name: "nil", err: nil, want: CodeSuccess},
		{name: "bare code", err: CodeDeadlock, want: CodeDeadlock},
		{name: "capability", err: &CapabilityError{Capability: "image", Version: 1}, want: CodeInterfaceNotSupported},
		{name: "config", err: &ConfigError{Field: "dir", Err: fmt.Errorf("empty")}, want: CodeValidation},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: CodeTimeout},
		{name: "canceled", err: context.Canceled, want: CodeCancelled},
		{name: "plain", err: fmt.Errorf("boom"), want: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestFromCode(t *testing.T) {
	assert.NoError(t, FromCode(CodeSuccess, "execute"))
	assert.NoError(t, FromCode(Code(3), "execute"))

	err := FromCode(CodeNotImplemented, "execute")
	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, CodeNotImplemented))
}

func TestErrorDetail(t *testing.T) {
	d := ToErrorDetail(New(CodeTimeout, "execute"))
	require.NotNil(t, d)
	assert.Equal(t, int32(CodeTimeout), d.ResultCode)
	assert.True(t, d.IsTimeout)

	d = ToErrorDetail(&CapabilityError{Capability: "audio", Version: 2})
	assert.Equal(t, "capability", d.Type)
	assert.Equal(t, int32(CodeInterfaceNotSupported), d.ResultCode)

	d = ToErrorDetail(fmt.Errorf("plain"))
	assert.Equal(t, "internal", d.Type)
	assert.Equal(t, int32(CodeUnknown), d.ResultCode)

	assert.Nil(t, ToErrorDetail(nil))

	back := FromErrorDetail(&wireformat.ErrorDetail{Message: "gone", ResultCode: int32(CodePluginNotFound)})
	assert.Equal(t, CodePluginNotFound, CodeOf(back))
	assert.Equal(t, CodeUnknown, CodeOf(FromErrorDetail(&wireformat.ErrorDetail{Message: "?"})))
	assert.NoError(t, FromErrorDetail(nil))
}
