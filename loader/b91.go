// Package loader parses the b91 textual object-file format and places
// its code/data segments into an emu.Memory image.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a malformed line in a b91 file.
type ParseError struct {
	Line     int
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expected %s at line %d but got %q", e.Expected, e.Line, e.Got)
}

// Program is a parsed b91 object file: the code and data segments with
// their placement addresses, and the symbol table.
type Program struct {
	CodeStart, CodeEnd int32
	Code               []int32

	DataStart, DataEnd int32
	Data               []int32

	// InitialFP and InitialSP seed FP from the end of the code segment
	// and SP from the end of the data segment.
	InitialFP, InitialSP int32

	Symbols *SymbolTable
}

type lineReader struct {
	sc  *bufio.Scanner
	num int
}

func (r *lineReader) next(expected string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", &ParseError{Line: r.num + 1, Expected: expected, Got: "end of file"}
	}
	r.num++
	return r.sc.Text(), nil
}

// Parse reads a b91 object file from r. It does not apply MMU bounds
// checking; Place checks that the segments fit within the MMU limit
// when it writes them into memory.
func Parse(r io.Reader) (*Program, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	lr.sc.Buffer(make([]byte, 1024), 1024)

	if err := expectLiteral(lr, "___b91___", "___b91___"); err != nil {
		return nil, err
	}
	if err := expectLiteral(lr, "___code___", "___code___"); err != nil {
		return nil, err
	}

	codeStart, codeEnd, err := expectRange(lr)
	if err != nil {
		return nil, err
	}
	code, err := expectWords(lr, codeStart, codeEnd)
	if err != nil {
		return nil, err
	}

	if err := expectLiteral(lr, "___data___", "___data___"); err != nil {
		return nil, err
	}
	dataStart, dataEnd, err := expectRange(lr)
	if err != nil {
		return nil, err
	}
	data, err := expectWords(lr, dataStart, dataEnd)
	if err != nil {
		return nil, err
	}

	if err := expectLiteral(lr, "___symboltable___", "___symboltable___"); err != nil {
		return nil, err
	}
	symbols, err := parseSymbolTable(lr)
	if err != nil {
		return nil, err
	}

	return &Program{
		CodeStart: codeStart, CodeEnd: codeEnd, Code: code,
		DataStart: dataStart, DataEnd: dataEnd, Data: data,
		InitialFP: codeEnd, InitialSP: dataEnd,
		Symbols: symbols,
	}, nil
}

func expectLiteral(lr *lineReader, expected, literal string) error {
	line, err := lr.next(expected)
	if err != nil {
		return err
	}
	if strings.TrimRight(line, "\r\n") != literal {
		return &ParseError{Line: lr.num, Expected: literal, Got: line}
	}
	return nil
}

func expectRange(lr *lineReader) (start, end int32, err error) {
	line, err := lr.next("two integers")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, &ParseError{Line: lr.num, Expected: "two integers", Got: line}
	}
	s, err1 := strconv.Atoi(fields[0])
	e, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, &ParseError{Line: lr.num, Expected: "two integers", Got: line}
	}
	return int32(s), int32(e), nil
}

func expectWords(lr *lineReader, start, end int32) ([]int32, error) {
	if end < start {
		return nil, nil
	}
	words := make([]int32, 0, end-start+1)
	for i := start; i <= end; i++ {
		line, err := lr.next("an integer")
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return nil, &ParseError{Line: lr.num, Expected: "an integer", Got: line}
		}
		words = append(words, int32(v))
	}
	return words, nil
}

func parseSymbolTable(lr *lineReader) (*SymbolTable, error) {
	t := NewSymbolTable()
	for {
		line, err := lr.next("___end___")
		if err != nil {
			return nil, err
		}
		if strings.TrimRight(line, "\r\n") == "___end___" {
			return t, nil
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &ParseError{Line: lr.num, Expected: "a name-value pair", Got: line}
		}
		t.Insert(fields[0], fields[1])
	}
}

// Place writes the code and data segments into mem at mmuBase+offset,
// reporting an error if either segment runs past mmuLimit words.
func Place(p *Program, mem interface {
	WritePhysical(addr int32, value int32) bool
}, mmuBase, mmuLimit int32) error {
	for i, w := range p.Code {
		addr := p.CodeStart + int32(i)
		if addr >= mmuLimit {
			return fmt.Errorf("program is too big to fit in mmu limit = %d words", mmuLimit)
		}
		if !mem.WritePhysical(mmuBase+addr, w) {
			return fmt.Errorf("code address %d out of backing memory", mmuBase+addr)
		}
	}
	for i, w := range p.Data {
		addr := p.DataStart + int32(i)
		if addr >= mmuLimit {
			return fmt.Errorf("program is too big to fit in mmu limit = %d words", mmuLimit)
		}
		if !mem.WritePhysical(mmuBase+addr, w) {
			return fmt.Errorf("data address %d out of backing memory", mmuBase+addr)
		}
	}
	return nil
}
