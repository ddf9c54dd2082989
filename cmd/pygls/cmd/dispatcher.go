package cmd

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/tsugumi-sys/pygls/internal/document"
	"github.com/tsugumi-sys/pygls/internal/server"
	"github.com/tsugumi-sys/pygls/internal/transport"
	"github.com/tsugumi-sys/pygls/internal/version"
)

const serverName = "pygls"

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// didChangeParams keeps the raw change shape so the event tag is fixed
// exactly once, at decode.
type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []document.ContentChange                 `json:"contentChanges"`
}

// dispatcher routes protocol messages to the engine. It runs on the
// server's control goroutine.
type dispatcher struct {
	logger   logrus.FieldLogger
	syncKind protocol.TextDocumentSyncKind
	srv      *server.Server
}

func newDispatcher(logger logrus.FieldLogger, syncKind protocol.TextDocumentSyncKind) *dispatcher {
	return &dispatcher{logger: logger, syncKind: syncKind}
}

// bind attaches the server after construction; the server needs the
// dispatcher first.
func (d *dispatcher) bind(srv *server.Server) { d.srv = srv }

func (d *dispatcher) Dispatch(ctx context.Context, t transport.Transport, body []byte) {
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		d.logger.WithError(err).Warn("discarding unparseable message")
		d.replyError(t, nil, codeParseError, "parse error")
		return
	}

	log := d.logger.WithField("method", req.Method)
	switch req.Method {
	// Lifecycle
	case protocol.MethodInitialize:
		d.handleInitialize(t, req)
	case protocol.MethodInitialized:
		// Nothing to do; the client is just confirming.
	case protocol.MethodShutdown:
		d.reply(t, req.ID, nil)
	case protocol.MethodExit:
		d.srv.Shutdown()

	// Document sync
	case protocol.MethodTextDocumentDidOpen:
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.WithError(err).Warn("bad params")
			return
		}
		d.srv.OpenDocument(params.TextDocument)
	case protocol.MethodTextDocumentDidChange:
		var params didChangeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.WithError(err).Warn("bad params")
			return
		}
		u := uri.URI(params.TextDocument.URI)
		if err := d.srv.ChangeDocument(u, params.ContentChanges, params.TextDocument.Version); err != nil {
			log.WithError(err).Warn("change rejected")
		}
	case protocol.MethodTextDocumentDidClose:
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.WithError(err).Warn("bad params")
			return
		}
		if err := d.srv.CloseDocument(uri.URI(params.TextDocument.URI)); err != nil {
			log.WithError(err).Warn("close rejected")
		}

	// Workspace
	case protocol.MethodWorkspaceDidChangeWorkspaceFolders:
		var params protocol.DidChangeWorkspaceFoldersParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.WithError(err).Warn("bad params")
			return
		}
		ws := d.srv.Workspace()
		for _, f := range params.Event.Added {
			ws.AddFolder(f)
		}
		for _, f := range params.Event.Removed {
			ws.RemoveFolder(f.URI)
		}

	default:
		if req.ID != nil {
			d.replyError(t, req.ID, codeMethodNotFound, "method not found: "+req.Method)
		} else {
			log.Debug("ignoring unsupported notification")
		}
	}
}

func (d *dispatcher) handleInitialize(t transport.Transport, req rpcRequest) {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		d.replyError(t, req.ID, codeInvalidParams, "invalid initialize params")
		return
	}
	if params.ClientInfo != nil {
		d.logger.WithField("client", params.ClientInfo.Name).Info("initialize")
	}

	ws := d.srv.Workspace()
	for _, f := range params.WorkspaceFolders {
		ws.AddFolder(f)
	}

	d.reply(t, req.ID, protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    d.syncKind,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: version.Version(),
		},
	})
}

func (d *dispatcher) reply(t transport.Transport, id json.RawMessage, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		d.logger.WithError(err).Error("encoding result")
		return
	}
	d.sendResponse(t, rpcResponse{JSONRPC: "2.0", ID: id, Result: data})
}

func (d *dispatcher) replyError(t transport.Transport, id json.RawMessage, code int, msg string) {
	d.sendResponse(t, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (d *dispatcher) sendResponse(t transport.Transport, resp rpcResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		d.logger.WithError(err).Error("encoding response")
		return
	}
	if err := d.srv.Send(t, payload); err != nil {
		d.logger.WithError(err).Error("writing response")
	}
}
