// Package chunker implements C4: an AST-preferred chunker with a
// sliding-window fallback. For Go source it splits on top-level
// function/method/type declarations using go/parser; every other
// language (and any Go file go/parser can't handle) falls back to a
// fixed window/overlap split.
//
// Grounded on hector's pkg/context/chunking/semantic_chunker.go
// (single-chunk-if-fits shortcut, AST-then-fallback structure) and
// original_source's backend/app/indexing/chunker.py (window=50,
// overlap=10 sliding-window semantics).
package chunker

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// DefaultWindowSize and DefaultOverlap match chunker.py's SimpleChunker
// defaults exactly, including the boundary property that consecutive
// chunk start_lines differ by window-overlap.
const (
	DefaultWindowSize = 50
	DefaultOverlap    = 10
)

// ChunkType discriminates how a Chunk's boundaries were chosen.
type ChunkType string

const (
	ChunkTypeAST       ChunkType = "ast"
	ChunkTypeHeuristic ChunkType = "heuristic"
)

// Chunk is one content span of a file.
type Chunk struct {
	Content     string
	StartLine   int // 1-based, inclusive
	EndLine     int // 1-based, inclusive
	Type        ChunkType
	StartOffset int
	EndOffset   int
}

// Symbol is one named declaration discovered during AST chunking.
type Symbol struct {
	Name           string
	Kind           string // "function", "method", "type"
	StartLine      int
	StartColumn    int
	EndLine        int
	EndColumn      int
	Signature      string
	ParentQualname string
	ChunkIndex     int
}

// Result is the output of chunking one file.
type Result struct {
	Chunks  []Chunk
	Symbols []Symbol
}

// Chunker splits file content into chunks (and, where possible,
// symbols) for indexing.
type Chunker interface {
	ChunkFile(content, language, path string) (Result, error)
}

// DefaultChunker is the module's only Chunker implementation.
type DefaultChunker struct {
	WindowSize int
	Overlap    int
}

// NewDefaultChunker constructs a DefaultChunker with chunker.py's
// window/overlap defaults.
func NewDefaultChunker() *DefaultChunker {
	return &DefaultChunker{WindowSize: DefaultWindowSize, Overlap: DefaultOverlap}
}

// ChunkFile returns an empty Result for empty content. A file that
// already fits in one window is returned as a single chunk. A Go file
// big enough to need splitting is chunked by top-level declaration; any
// other language, or a Go file go/parser can't handle, falls back to
// the sliding window.
func (c *DefaultChunker) ChunkFile(content, language, path string) (Result, error) {
	if content == "" {
		return Result{}, nil
	}

	lines := strings.Split(content, "\n")
	if len(lines) <= c.WindowSize {
		return Result{Chunks: []Chunk{singleChunk(content)}}, nil
	}

	if language == "go" {
		if result, ok := c.chunkGoAST(content, path); ok {
			return result, nil
		}
	}

	return Result{Chunks: c.chunkSlidingWindow(content)}, nil
}

func singleChunk(content string) Chunk {
	lines := strings.Split(content, "\n")
	return Chunk{
		Content:     content,
		StartLine:   1,
		EndLine:     len(lines),
		Type:        ChunkTypeAST,
		StartOffset: 0,
		EndOffset:   len(content),
	}
}

// chunkSlidingWindow produces overlapping fixed-size windows, stepping
// by WindowSize-Overlap and stopping once a window reaches EOF — it
// never emits a final window that only re-covers already-seen lines,
// matching chunker.py's chunk_file.
func (c *DefaultChunker) chunkSlidingWindow(content string) []Chunk {
	lines := strings.Split(content, "\n")
	total := len(lines)
	step := c.WindowSize - c.Overlap
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	lineByteOffset := make([]int, total+1)
	offset := 0
	for i, l := range lines {
		lineByteOffset[i] = offset
		offset += len(l) + 1
	}
	lineByteOffset[total] = offset

	for start := 0; start < total; start += step {
		end := start + c.WindowSize
		if end > total {
			end = total
		}
		chunkLines := lines[start:end]
		text := strings.Join(chunkLines, "\n")
		if strings.TrimSpace(text) == "" {
			if end >= total {
				break
			}
			continue
		}

		chunks = append(chunks, Chunk{
			Content:     text,
			StartLine:   start + 1,
			EndLine:     end,
			Type:        ChunkTypeHeuristic,
			StartOffset: lineByteOffset[start],
			EndOffset:   lineByteOffset[start] + len(text),
		})

		if end >= total {
			break
		}
	}
	return chunks
}

// chunkGoAST parses content as a Go source file and emits one chunk
// per top-level function/method declaration plus one per type
// declaration, each carrying the Symbol it was built from. It returns
// ok=false (letting the caller fall back to the sliding window) if the
// file fails to parse or declares nothing chunkable.
func (c *DefaultChunker) chunkGoAST(content, path string) (Result, bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return Result{}, false
	}

	lines := strings.Split(content, "\n")
	var result Result

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			start := fset.Position(d.Pos())
			end := fset.Position(d.End())
			kind := "function"
			parent := ""
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind = "method"
				parent = receiverTypeName(d.Recv.List[0].Type)
			}

			chunkIdx := len(result.Chunks)
			result.Chunks = append(result.Chunks, Chunk{
				Content:   sliceLines(lines, start.Line, end.Line),
				StartLine: start.Line,
				EndLine:   end.Line,
				Type:      ChunkTypeAST,
			})
			result.Symbols = append(result.Symbols, Symbol{
				Name:           d.Name.Name,
				Kind:           kind,
				StartLine:      start.Line,
				StartColumn:    start.Column,
				EndLine:        end.Line,
				EndColumn:      end.Column,
				Signature:      funcSignature(d),
				ParentQualname: parent,
				ChunkIndex:     chunkIdx,
			})

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				start := fset.Position(d.Pos())
				end := fset.Position(d.End())

				chunkIdx := len(result.Chunks)
				result.Chunks = append(result.Chunks, Chunk{
					Content:   sliceLines(lines, start.Line, end.Line),
					StartLine: start.Line,
					EndLine:   end.Line,
					Type:      ChunkTypeAST,
				})
				result.Symbols = append(result.Symbols, Symbol{
					Name:        ts.Name.Name,
					Kind:        "type",
					StartLine:   start.Line,
					StartColumn: start.Column,
					EndLine:     end.Line,
					EndColumn:   end.Column,
					ChunkIndex:  chunkIdx,
				})
			}
		}
	}

	if len(result.Chunks) == 0 {
		return Result{}, false
	}
	return result, true
}

func sliceLines(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func funcSignature(d *ast.FuncDecl) string {
	recv := ""
	if d.Recv != nil && len(d.Recv.List) > 0 {
		recv = fmt.Sprintf("(%s) ", receiverTypeName(d.Recv.List[0].Type))
	}
	return fmt.Sprintf("func %s%s(...)", recv, d.Name.Name)
}
