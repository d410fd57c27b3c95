package transport

import "encoding/json"

// Position and Range use LSP's line/character convention, zero-indexed.
// Character is measured in the unit named by PositionEncodingKind.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// PositionEncodingKind is negotiated during initialize; LSF only
// supports the two encodings the corpus's incremental-offset math
// handles (utf-16, utf-32), never utf-8.
type PositionEncodingKind string

const (
	UTF8  PositionEncodingKind = "utf-8"
	UTF16 PositionEncodingKind = "utf-16"
	UTF32 PositionEncodingKind = "utf-32"
)

type TextDocumentSyncKind int

const (
	None TextDocumentSyncKind = iota
	Full
	Incremental
)

type DiagnosticSeverity int

const (
	Error DiagnosticSeverity = iota + 1
	Warning
	Information
	Hint
)

type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     string             `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// --- Text document identifiers ---

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// --- Lifecycle ---

type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

type GeneralClientCapabilities struct {
	PositionEncodings []string `json:"positionEncodings,omitempty"`
}

type ClientCapabilities struct {
	General *GeneralClientCapabilities `json:"general,omitempty"`
}

type InitializeParams struct {
	ProcessID        *int                `json:"processId,omitempty"`
	RootURI          DocumentURI         `json:"rootUri,omitempty"`
	WorkspaceFolders []WorkspaceFolder   `json:"workspaceFolders,omitempty"`
	Capabilities     ClientCapabilities  `json:"capabilities"`
}

// Or_ServerCapabilities_* mirrors the boolean-or-options shape LSP
// allows for several capability fields; Value carries the bool form,
// and the object form is not modeled. LSF only ever sends the bool form, but the
// wrapper keeps the JSON shape honest for clients that check truthiness.
type Or_ServerCapabilities_documentSymbolProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_documentSymbolProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type Or_ServerCapabilities_documentFormattingProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_documentFormattingProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type Or_ServerCapabilities_definitionProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_definitionProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type Or_ServerCapabilities_hoverProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_hoverProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type Or_ServerCapabilities_renameProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_renameProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type Or_ServerCapabilities_referencesProvider struct {
	Value bool
}

func (o Or_ServerCapabilities_referencesProvider) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Full   bool                 `json:"full,omitempty"`
}

type WorkspaceFolders5Gn struct {
	Supported           bool   `json:"supported"`
	ChangeNotifications string `json:"changeNotifications,omitempty"`
}

type WorkspaceOptions struct {
	WorkspaceFolders *WorkspaceFolders5Gn `json:"workspaceFolders,omitempty"`
}

type ServerCapabilities struct {
	PositionEncoding           *PositionEncodingKind                             `json:"positionEncoding,omitempty"`
	TextDocumentSync           TextDocumentSyncKind                              `json:"textDocumentSync,omitempty"`
	DocumentSymbolProvider     *Or_ServerCapabilities_documentSymbolProvider     `json:"documentSymbolProvider,omitempty"`
	DocumentFormattingProvider *Or_ServerCapabilities_documentFormattingProvider `json:"documentFormattingProvider,omitempty"`
	DefinitionProvider         *Or_ServerCapabilities_definitionProvider        `json:"definitionProvider,omitempty"`
	HoverProvider              *Or_ServerCapabilities_hoverProvider             `json:"hoverProvider,omitempty"`
	RenameProvider             *Or_ServerCapabilities_renameProvider            `json:"renameProvider,omitempty"`
	ReferencesProvider         *Or_ServerCapabilities_referencesProvider        `json:"referencesProvider,omitempty"`
	CompletionProvider         *CompletionOptions                               `json:"completionProvider,omitempty"`
	SemanticTokensProvider     *SemanticTokensOptions                            `json:"semanticTokensProvider,omitempty"`
	Workspace                  *WorkspaceOptions                                 `json:"workspace,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// --- Synchronization ---

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier   `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

type DidChangeWorkspaceFoldersParams struct {
	Event WorkspaceFoldersChangeEvent `json:"event"`
}

// DidChangeConfigurationParams carries the free-form Settings object
// spec §6 describes; LSF only reads the include_path key out of it,
// leaving the rest (per-analyzer tool paths) to the plugin manager's
// own configuration.
type DidChangeConfigurationParams struct {
	Settings Settings `json:"settings"`
}

type Settings struct {
	IncludePath string `json:"include_path,omitempty"`
}

type WorkspaceFoldersChangeEvent struct {
	Added   []WorkspaceFolder `json:"added"`
	Removed []WorkspaceFolder `json:"removed"`
}

// --- Document symbols ---

type SymbolKind int

const (
	FileSymbol SymbolKind = iota + 1
	Module
	Namespace
	Package
	Class
	Method
	Property
	Field
	Constructor
	Enum
	Interface
	Function
	Variable
	Constant
)

type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Completion ---

type CompletionItemKind int

const (
	TextCompletion CompletionItemKind = iota + 1
	MethodCompletion
	FunctionCompletion
	ConstructorCompletion
	FieldCompletion
	VariableCompletion
	ClassCompletion
	InterfaceCompletion
	ModuleCompletion
	PropertyCompletion
	KeywordCompletion
)

type InsertTextFormat int

const (
	PlainTextTextFormat InsertTextFormat = iota + 1
	SnippetTextFormat
)

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

type MarkupKind string

const (
	PlainText MarkupKind = "plaintext"
	Markdown  MarkupKind = "markdown"
)

type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

type CompletionItem struct {
	Label            string            `json:"label"`
	Kind             CompletionItemKind `json:"kind,omitempty"`
	Detail           string            `json:"detail,omitempty"`
	Documentation    *MarkupContent    `json:"documentation,omitempty"`
	InsertTextFormat *InsertTextFormat `json:"insertTextFormat,omitempty"`
	TextEdit         TextEdit          `json:"textEdit"`
}

type CompletionParams struct {
	TextDocumentPositionParams
}

// --- Hover ---

type HoverParams struct {
	TextDocumentPositionParams
}

type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// --- Goto definition / references ---

type DefinitionParams struct {
	TextDocumentPositionParams
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// --- Rename ---

type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

type TextDocumentEdit struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []TextEdit                      `json:"edits"`
}

type WorkspaceEdit struct {
	Changes         map[DocumentURI][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []TextDocumentEdit         `json:"documentChanges,omitempty"`
}

type PrepareRenameParams struct {
	TextDocumentPositionParams
}

// --- Formatting ---

type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// --- Semantic tokens ---

type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// SemanticTokens carries the delta-encoded quintuple stream spec §4.7
// describes: each token is (deltaLine, deltaStart, length, tokenType,
// tokenModifiers) relative to the previous token.
type SemanticTokens struct {
	Data []uint32 `json:"data"`
}

// SemanticTokenKindName is a token-type name as named by the language
// definition (its symbol_types, its highlight hints, and the reserved
// "keyword" slot; spec §4.1); the legend sent to the client
// in ServerCapabilities.SemanticTokensProvider is built from these in
// first-seen order, never from a fixed LSP-standard enum.
type SemanticTokenKindName string
