package command

import (
	"hash/fnv"
	"sync"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// userLocks сериализует обработку событий по пользователю. События разных
// пользователей обрабатываются параллельно, события одного пользователя
// строго по очереди. Фиксированное число страйпов держит память константной
// при любом количестве пользователей.
type userLocks struct {
	stripes []sync.Mutex
}

const lockStripes = 256

func newUserLocks() *userLocks {
	return &userLocks{stripes: make([]sync.Mutex, lockStripes)}
}

func (l *userLocks) lock(userID shared.UserID) func() {
	m := &l.stripes[l.stripeFor(userID)]
	m.Lock()
	return m.Unlock
}

func (l *userLocks) stripeFor(userID shared.UserID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % lockStripes)
}
