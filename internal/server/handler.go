package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sourcegraph/jsonrpc2"
)

// handle answers server-to-client traffic. It runs on the connection's read
// loop, so it must not call back into the server.
func (s *Supervisor) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "window/showMessage":
		var p showMessageParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		s.show(p.Type, p.Message)
		return nil, nil

	case "window/showMessageRequest":
		var p showMessageRequestParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		titles := make([]string, 0, len(p.Actions))
		for _, a := range p.Actions {
			titles = append(titles, a.Title)
		}
		if choice := s.show(p.Type, p.Message, titles...); choice != "" {
			return messageActionItem{Title: choice}, nil
		}
		return nil, nil

	case "window/logMessage":
		var p showMessageParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		s.logger.Log(ctx, logLevel(p.Type), "sqls", "message", p.Message)
		return nil, nil

	case "workspace/configuration":
		var p configurationParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		settings, err := s.settings()
		if err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		}
		out := make([]Settings, len(p.Items))
		for i := range out {
			out[i] = settings
		}
		return out, nil

	case "client/registerCapability", "client/unregisterCapability", "window/workDoneProgress/create":
		return nil, nil
	}

	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not supported: " + req.Method}
}

func (s *Supervisor) show(msgType int, message string, actions ...string) string {
	switch msgType {
	case messageTypeError:
		return s.notifier.Error(message, actions...)
	case messageTypeWarning:
		return s.notifier.Warning(message, actions...)
	default:
		return s.notifier.Info(message, actions...)
	}
}

func logLevel(msgType int) slog.Level {
	switch msgType {
	case messageTypeError:
		return slog.LevelError
	case messageTypeWarning:
		return slog.LevelWarn
	case messageTypeInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func decodeParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}
