// Package trace is the stdlib-log equivalent of logdump, for operators who
// want packet traces on stderr/stdout rather than in a dated file.
package trace

import (
	"log"

	"github.com/epiphyte/radiucal/internal/pluginutil"
	"github.com/epiphyte/radiucal/internal/proxycore"
)

type Hook struct{}

func NewHook() *Hook {
	return &Hook{}
}

func (Hook) PreForward(evt proxycore.Event) {
	dump("forward", evt)
}

func (Hook) PostReply(evt proxycore.Event) {
	dump("reply", evt)
}

func dump(mode string, evt proxycore.Event) {
	go func() {
		log.Printf("%s id -> %s (client:%s upstream:%s)", mode, evt.CorrelationID, evt.Client, evt.Upstream)
		for _, a := range pluginutil.KeyValueStrings(evt.Buffer, "") {
			log.Println(a)
		}
	}()
}
