package errors

import (
	"golang.org/x/text/language"
)

// Code is the result code exchanged across the plugin boundary.
// Zero is success, negative values are failures grouped by decade and
// positive values are reserved for informational results.
type Code int32

// General
const (
	CodeSuccess           Code = 0
	CodeUnknown           Code = -1
	CodeInvalidParameter  Code = -2
	CodeNotSupported      Code = -3
	CodeMemoryAllocation  Code = -4
	CodeNullPointer       Code = -5
	CodeOutOfBounds       Code = -6
	CodeInvalidState      Code = -7
	CodePermissionDenied  Code = -8
	CodeResourceBusy      Code = -9
	CodeResourceExhausted Code = -10
)

// Initialization
const (
	CodeInitializationFailed Code = -20
	CodeAlreadyInitialized   Code = -21
	CodeNotInitialized       Code = -22
	CodeVersionMismatch      Code = -23
	CodeIncompatible         Code = -24
)

// Plugin and interface
const (
	CodePluginNotFound        Code = -30
	CodeInterfaceNotSupported Code = -31
	CodeNotImplemented        Code = -32
	CodePluginLoadFailed      Code = -33
	CodePluginUnloadFailed    Code = -34
)

// I/O and network
const (
	CodeConnectionFailed Code = -40
	CodeTimeout          Code = -41
	CodeIO               Code = -42
	CodeNetwork          Code = -43
	CodeCancelled        Code = -44
)

// Data and parsing
const (
	CodeParse             Code = -50
	CodeValidation        Code = -51
	CodeEncoding          Code = -52
	CodeDataCorrupted     Code = -53
	CodeFormatUnsupported Code = -54
)

// Concurrency
const (
	CodeLockFailed  Code = -60
	CodeDeadlock    Code = -61
	CodeState       Code = -62
	CodeThreadPanic Code = -63
)

// File system
const (
	CodeFileNotFound      Code = -70
	CodeFileExists        Code = -71
	CodeDirectoryNotEmpty Code = -72
	CodeDiskFull          Code = -73
)

const (
	reservedHigh Code = -100
	reservedLow  Code = -999
)

// IsSuccess reports whether c is CodeSuccess.
func (c Code) IsSuccess() bool { return c == CodeSuccess }

// IsError reports whether c denotes a failure.
func (c Code) IsError() bool { return c < 0 }

// IsInfo reports whether c is an informational result.
func (c Code) IsInfo() bool { return c > 0 }

// IsReserved reports whether c falls in the reserved -100..-999 range.
// Callers may ignore reserved codes.
func (c Code) IsReserved() bool { return c <= reservedHigh && c >= reservedLow }

// String returns the English message for c.
func (c Code) String() string {
	return c.Message(defaultTag)
}

// Error lets a bare Code be used as an error value and as an errors.Is target.
func (c Code) Error() string {
	return c.String()
}

// Message returns the human-readable message for c in lang, falling back
// to English for unknown or unsupported tags.
func (c Code) Message(lang string) string {
	catalog := catalogs[matchCatalog(lang)]
	if msg, ok := catalog[c]; ok {
		return msg
	}
	if c.IsReserved() {
		return catalog[reservedHigh]
	}
	if c.IsInfo() {
		return catalog[CodeSuccess]
	}
	return catalog[CodeUnknown]
}

const defaultTag = "en-US"

var supportedTags = []language.Tag{
	language.AmericanEnglish,
	language.Japanese,
}

var catalogMatcher = language.NewMatcher(supportedTags)

func matchCatalog(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.AmericanEnglish
	}
	_, idx, conf := catalogMatcher.Match(tag)
	if conf == language.No {
		return language.AmericanEnglish
	}
	return supportedTags[idx]
}

var catalogs = map[language.Tag]map[Code]string{
	language.AmericanEnglish: {
		CodeSuccess:               "Success",
		CodeUnknown:               "Unknown error",
		CodeInvalidParameter:      "Invalid parameter",
		CodeNotSupported:          "Unsupported operation",
		CodeMemoryAllocation:      "Memory allocation failure",
		CodeNullPointer:           "NULL pointer error",
		CodeOutOfBounds:           "Out of bounds access",
		CodeInvalidState:          "Invalid state",
		CodePermissionDenied:      "Access permission denied",
		CodeResourceBusy:          "Resource is busy",
		CodeResourceExhausted:     "Resource exhausted",
		CodeInitializationFailed:  "Initialization failed",
		CodeAlreadyInitialized:    "Already initialized",
		CodeNotInitialized:        "Not initialized",
		CodeVersionMismatch:       "Version mismatch",
		CodeIncompatible:          "Incompatible",
		CodePluginNotFound:        "Plugin not found",
		CodeInterfaceNotSupported: "Interface not supported",
		CodeNotImplemented:        "Not implemented",
		CodePluginLoadFailed:      "Plugin load failed",
		CodePluginUnloadFailed:    "Plugin unload failed",
		CodeConnectionFailed:      "Connection failed",
		CodeTimeout:               "Timeout",
		CodeIO:                    "I/O error",
		CodeNetwork:               "Network error",
		CodeCancelled:             "Operation cancelled",
		CodeParse:                 "Parse error",
		CodeValidation:            "Validation error",
		CodeEncoding:              "Encoding error",
		CodeDataCorrupted:         "Data corrupted",
		CodeFormatUnsupported:     "Unsupported format",
		CodeLockFailed:            "Lock acquisition failed",
		CodeDeadlock:              "Deadlock detected",
		CodeState:                 "State management error",
		CodeThreadPanic:           "Thread panic",
		CodeFileNotFound:          "File not found",
		CodeFileExists:            "File already exists",
		CodeDirectoryNotEmpty:     "Directory not empty",
		CodeDiskFull:              "Disk full",
		reservedHigh:              "Reserved error code",
	},
	language.Japanese: {
		CodeSuccess:               "成功",
		CodeUnknown:               "不明なエラー",
		CodeInvalidParameter:      "無効なパラメータ",
		CodeNotSupported:          "サポートされていない操作",
		CodeMemoryAllocation:      "メモリ割り当てエラー",
		CodeNullPointer:           "NULLポインタエラー",
		CodeOutOfBounds:           "範囲外アクセス",
		CodeInvalidState:          "無効な状態",
		CodePermissionDenied:      "アクセス権限がありません",
		CodeResourceBusy:          "リソースが使用中です",
		CodeResourceExhausted:     "リソースが不足しています",
		CodeInitializationFailed:  "初期化に失敗しました",
		CodeAlreadyInitialized:    "既に初期化されています",
		CodeNotInitialized:        "初期化されていません",
		CodeVersionMismatch:       "バージョンが一致しません",
		CodeIncompatible:          "互換性がありません",
		CodePluginNotFound:        "プラグインが見つかりません",
		CodeInterfaceNotSupported: "インターフェースがサポートされていません",
		CodeNotImplemented:        "実装されていません",
		CodePluginLoadFailed:      "プラグインの読み込みに失敗しました",
		CodePluginUnloadFailed:    "プラグインのアンロードに失敗しました",
		CodeConnectionFailed:      "接続に失敗しました",
		CodeTimeout:               "タイムアウト",
		CodeIO:                    "I/Oエラー",
		CodeNetwork:               "ネットワークエラー",
		CodeCancelled:             "操作がキャンセルされました",
		CodeParse:                 "解析エラー",
		CodeValidation:            "検証エラー",
		CodeEncoding:              "エンコードエラー",
		CodeDataCorrupted:         "データが破損しています",
		CodeFormatUnsupported:     "サポートされていない形式",
		CodeLockFailed:            "ロックの取得に失敗しました",
		CodeDeadlock:              "デッドロックを検出しました",
		CodeState:                 "状態管理エラー",
		CodeThreadPanic:           "スレッドパニック",
		CodeFileNotFound:          "ファイルが見つかりません",
		CodeFileExists:            "ファイルは既に存在します",
		CodeDirectoryNotEmpty:     "ディレクトリが空ではありません",
		CodeDiskFull:              "ディスクの空き容量がありません",
		reservedHigh:              "予約済みエラーコード",
	},
}
