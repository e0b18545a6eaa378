// Package protocol models command replies and renders them as text lines.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"pyrocache/pkg/utils"
)

type Kind uint8

const (
	NilReply Kind = iota
	StatusReply
	IntegerReply
	BulkReply
	ErrorReply
	ArrayReply
)

type Reply struct {
	Kind    Kind
	Text    string
	Integer int64
	Items   []Reply
}

func Nil() Reply {
	return Reply{Kind: NilReply}
}

func OK() Reply {
	return Status("OK")
}

func Status(text string) Reply {
	return Reply{Kind: StatusReply, Text: text}
}

func Integer(value int64) Reply {
	return Reply{Kind: IntegerReply, Integer: value}
}

func Int(value int) Reply {
	return Integer(int64(value))
}

func Bool(value bool) Reply {
	return Integer(lo.Ternary[int64](value, 1, 0))
}

func Bulk(text string) Reply {
	return Reply{Kind: BulkReply, Text: text}
}

func Score(score float64) Reply {
	return Bulk(utils.FormatScore(score))
}

func Error(message string) Reply {
	return Reply{Kind: ErrorReply, Text: message}
}

// Internal failure surfaced to the client
func Failure(err error) Reply {
	return Error(fmt.Sprintf("Error: %v", err))
}

func Array(items ...Reply) Reply {
	if items == nil {
		items = []Reply{}
	}
	return Reply{Kind: ArrayReply, Items: items}
}

func Strings(values []string) Reply {
	return Array(lo.Map(values, func(value string, _ int) Reply {
		return Bulk(value)
	})...)
}

func (r Reply) IsError() bool {
	return r.Kind == ErrorReply
}

// Text lines of the reply. Arrays number their items from 1 and indent
// the continuation lines of nested items under their first line.
func (r Reply) Lines() []string {
	switch r.Kind {
	case NilReply:
		return []string{"nil"}
	case IntegerReply:
		return []string{strconv.FormatInt(r.Integer, 10)}
	case ArrayReply:
		if len(r.Items) == 0 {
			return []string{""}
		}
		lines := make([]string, 0, len(r.Items))
		for index, item := range r.Items {
			prefix := strconv.Itoa(index+1) + ") "
			padding := strings.Repeat(" ", len(prefix))
			for position, line := range item.Lines() {
				lines = append(lines, lo.Ternary(position == 0, prefix, padding)+line)
			}
		}
		return lines
	default:
		return []string{r.Text}
	}
}

func (r Reply) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Rendered reply terminated by a newline, ready for the wire
func (r Reply) ToString() string {
	return r.String() + "\n"
}
