package client

import (
	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/parser"
	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// Response is the decoded shape of a completed call: either an ERRO
// (IsError true, ErrorCode set) or a RETN (Result/Errno set, plus Data
// or HeapInfo depending on the operation's response kind).
type Response struct {
	IsError   bool
	ErrorCode uint16

	Result int64
	Errno  int32
	Data   []byte

	HeapBase, HeapLimit, StackBase, StackLimit uint64
}

// parseResponse decodes buf (the container the host wrote back in place)
// according to row's declared response shape.
func parseResponse(buf []byte, bufSize int, row optable.Row, intSize, ptrSize int, endian wire.Endianness) (*Response, error) {
	view, err := parser.Parse(buf, bufSize, intSize, endian)
	if err != nil {
		return nil, err
	}
	if view.ERRO.Present {
		return &Response{IsError: true, ErrorCode: view.ERROCode}, nil
	}
	if !view.RETN.Present {
		return nil, semierr.ErrParse
	}

	resp := &Response{Result: view.RETNResult, Errno: view.RETNErrno}
	switch row.Response {
	case optable.RespData:
		if len(view.Data) > 0 {
			resp.Data = append([]byte{}, view.Data[0].Bytes(buf)...)
		}
	case optable.RespHeapinfo:
		if len(view.Parms) >= 4 {
			resp.HeapBase = uint64(view.Parms[0].Raw)
			resp.HeapLimit = uint64(view.Parms[1].Raw)
			resp.StackBase = uint64(view.Parms[2].Raw)
			resp.StackLimit = uint64(view.Parms[3].Raw)
		}
	case optable.RespElapsed:
		if len(view.Data) > 0 {
			b := view.Data[0].Bytes(buf)
			if len(b) >= 8 {
				lo, _ := wire.Uint32LE(b, 0)
				hi, _ := wire.Uint32LE(b, 4)
				resp.Result = int64(uint64(lo) | uint64(hi)<<32)
			}
		}
	}
	return resp, nil
}
