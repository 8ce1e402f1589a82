package lobby

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// CodeLength is the length of a lobby join code.
const CodeLength = 4

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces candidate join codes. It is injected into the
// service so tests can force collisions deterministically.
type CodeGenerator interface {
	Code() string
}

type randCodeGenerator struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewCodeGenerator returns a generator backed by its own seeded source.
func NewCodeGenerator() CodeGenerator {
	return &randCodeGenerator{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *randCodeGenerator) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[g.r.Intn(len(codeAlphabet))])
	}
	return b.String()
}
