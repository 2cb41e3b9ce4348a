package server

import "github.com/joacominatel/sqlbridge/internal/connstore"

// Remote command names understood by sqls.
const (
	CommandSwitchConnections = "switchConnections"
	CommandSwitchDatabase    = "switchDatabase"
	CommandShowDatabases     = "showDatabases"
	CommandShowTables        = "showTables"
	CommandExecuteQuery      = "executeQuery"
)

// Output mode flag for executeQuery.
const ShowJSONFlag = "-show-json"

// ConnectionConfig is the wire form of a connection.
type ConnectionConfig struct {
	Alias          string `json:"alias"`
	Driver         string `json:"driver"`
	DataSourceName string `json:"dataSourceName"`
}

// Settings is the configuration payload for initialize and
// didChangeConfiguration.
type Settings struct {
	LowercaseKeywords bool               `json:"lowercaseKeywords"`
	Connections       []ConnectionConfig `json:"connections"`
}

func wireConnections(entries []connstore.Entry) []ConnectionConfig {
	out := make([]ConnectionConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConnectionConfig{
			Alias:          e.Alias,
			Driver:         string(e.Driver),
			DataSourceName: e.DataSourceName,
		})
	}
	return out
}

type initializeParams struct {
	ProcessID             int      `json:"processId"`
	RootURI               *string  `json:"rootUri"`
	Capabilities          struct{} `json:"capabilities"`
	InitializationOptions Settings `json:"initializationOptions"`
}

type executeCommandParams struct {
	Command   string `json:"command"`
	Arguments []any  `json:"arguments"`
}

type didChangeConfigurationParams struct {
	Settings struct {
		SQLS Settings `json:"sqls"`
	} `json:"settings"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type contentChange struct {
	Text string `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                 `json:"contentChanges"`
}

// Position is a zero-based line and character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range selects part of a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// QueryRequest describes one executeQuery call.
type QueryRequest struct {
	URI string
	// ShowJSON asks for the JSON output mode instead of an ASCII table.
	ShowJSON bool
	// Range restricts execution to a selection. Nil runs the whole document.
	Range      *Range
	CursorOnly bool
}

func (q QueryRequest) arguments() []any {
	mode := ""
	if q.ShowJSON {
		mode = ShowJSONFlag
	}
	var rng any
	if q.Range != nil {
		rng = q.Range
	}
	return []any{q.URI, mode, rng, q.CursorOnly}
}

// LSP message types for window/showMessage.
const (
	messageTypeError   = 1
	messageTypeWarning = 2
	messageTypeInfo    = 3
	messageTypeLog     = 4
)

type showMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type messageActionItem struct {
	Title string `json:"title"`
}

type showMessageRequestParams struct {
	Type    int                 `json:"type"`
	Message string              `json:"message"`
	Actions []messageActionItem `json:"actions"`
}

type configurationItem struct {
	Section string `json:"section"`
}

type configurationParams struct {
	Items []configurationItem `json:"items"`
}
