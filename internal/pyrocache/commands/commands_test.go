package commands

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/internal/pyrocache/protocol"
)

var testRegistry = NewRegistry()

func newTestEngine() *Engine {
	return NewEngine(keyspace.New(), Options{Username: "USER", Password: "PASS"})
}

// Resolves, validates and runs one command the way the dispatcher does.
func execute(engine *Engine, session *Session, fields ...string) protocol.Reply {
	command, args, ok := testRegistry.Resolve(fields)
	if !ok {
		return protocol.Error("unknown command")
	}
	if err := command.Validate(args); err != nil {
		return protocol.Error(err.Error())
	}

	request := NewRequest(command.Name, args, session)
	reply := command.Run(session.Context(), engine, request)
	for _, key := range request.PurgeKeys() {
		engine.store.RemoveIf(key, entries.Entry.IsExpired)
	}
	return reply
}

type scenario struct {
	fields []string
	want   string
}

func runScenario(t *testing.T, engine *Engine, session *Session, steps []scenario) {
	t.Helper()
	for _, step := range steps {
		if got := execute(engine, session, step.fields...).String(); got != step.want {
			t.Errorf("%s = %q, want %q", strings.Join(step.fields, " "), got, step.want)
		}
	}
}

func cmd(fields ...string) []string {
	return fields
}

func TestStrings(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SET", "foo", "bar"), "OK"},
		{cmd("get", "foo"), "bar"},
		{cmd("GET", "missing"), "nil"},
		{cmd("APPEND", "foo", "baz"), "6"},
		{cmd("STRLEN", "foo"), "6"},
		{cmd("GETRANGE", "foo", "0", "2"), "bar"},
		{cmd("SUBSTR", "foo", "-3", "-1"), "baz"},
		{cmd("GETRANGE", "missing", "0", "2"), ""},
		{cmd("INCR", "n"), "1"},
		{cmd("INCRBY", "n", "5"), "6"},
		{cmd("DECRBY", "n", "2"), "4"},
		{cmd("DECR", "n"), "3"},
		{cmd("INCR", "foo"), "nil"},
		{cmd("SETRANGE", "padded", "3", "ab"), "5"},
		{cmd("GET", "padded"), "\x00\x00\x00ab"},
		{cmd("GETSET", "foo", "new"), "barbaz"},
		{cmd("GETSET", "fresh", "v"), "nil"},
		{cmd("MSET", "a", "1", "b", "2"), "OK"},
		{cmd("MGET", "a", "b", "c"), "1) 1\n2) 2\n3) nil"},
		{cmd("SETEX", "s", "100", "v"), "OK"},
		{cmd("TTL", "s"), "100"},
	})
}

func TestValidation(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("GET"), ErrorParameterCount.Error()},
		{cmd("GET", strings.Repeat("k", MaxKeyLength+1)), ErrorKeyTooLong.Error()},
		{cmd("EXPIRE", "k", "soon"), ErrorSeconds.Error()},
		{cmd("PEXPIRE", "k", "soon"), ErrorMilliseconds.Error()},
		{cmd("MSET", "a"), ErrorUnpairedParameters.Error()},
		{cmd("SET", "k", "v", "PX", "1"), ErrorSyntax.Error()},
		{cmd("LINSERT", "l", "AROUND", "a", "b"), ErrorSyntax.Error()},
		{cmd("BRPOP", "l", "-1"), ErrorTimeout.Error()},
		{cmd("ZADD", "z", "high", "a"), ErrorScore.Error()},
		{cmd("ZPOPMIN", "z", "-2"), ErrorCount.Error()},
		{cmd("ZMPOP", "0", "z", "MIN"), ErrorNumKeys.Error()},
		{cmd("ZMPOP", "3", "z", "MIN"), ErrorParameterCount.Error()},
		{cmd("GEOADD", "g", "200", "10", "m"), ErrorCoordinates.Error()},
		{cmd("GEODIST", "g", "a", "b", "parsecs"), ErrorSyntax.Error()},
		{cmd("CLIENT", "PAUSE", "later"), ErrorMilliseconds.Error()},
		{cmd("SETRANGE", "k", "9223372036854775807", "x"), ErrorValueTooLong.Error()},
		{cmd("SETRANGE", "k", "-1", "x"), ErrorOffset.Error()},
		{cmd("EXPIRE", "k", "9300000000"), ErrorExpiry.Error()},
		{cmd("EXPIRE", "k", "-9300000000"), ErrorExpiry.Error()},
		{cmd("PEXPIRE", "k", "9300000000000"), ErrorExpiry.Error()},
		{cmd("SET", "k", "v", "EX", "9300000000"), ErrorExpiry.Error()},
		{cmd("SETEX", "k", "9300000000", "v"), ErrorExpiry.Error()},
		{cmd("DECRBY", "k", "-9223372036854775808"), ErrorIncrement.Error()},
		{cmd("ZADD", "z", "1", "a", "nan", "c"), ErrorScore.Error()},
		{cmd("ZINCRBY", "z", "nan", "m"), ErrorFloatIncrement.Error()},
		{cmd("BRPOP", "l", "nan"), ErrorTimeout.Error()},
		{cmd("BRPOP", "l", "inf"), ErrorTimeout.Error()},
		{cmd("SET", "k", "v", "ex", "10"), ErrorSyntax.Error()},
		{cmd("LINSERT", "l", "before", "a", "b"), ErrorSyntax.Error()},
		{cmd("ZRANGE", "z", "0", "-1", "withscores"), ErrorSyntax.Error()},
	})
}

func TestNumericLimits(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SET", "k", "v"), "OK"},
		{cmd("SETRANGE", "k", "9223372036854775807", "x"), ErrorValueTooLong.Error()},
		{cmd("SETRANGE", "k", strconv.Itoa(MaxValueLength), "x"), ErrorValueTooLong.Error()},
		{cmd("GET", "k"), "v"},
		{cmd("EXPIRE", "k", "9300000000"), ErrorExpiry.Error()},
		{cmd("GET", "k"), "v"},
		{cmd("EXPIRE", "k", "9000000000"), "1"},
		{cmd("GET", "k"), "v"},
		{cmd("SET", "n", "0"), "OK"},
		{cmd("DECRBY", "n", "9223372036854775807"), "-9223372036854775807"},
		{cmd("DECRBY", "n", "1"), "-9223372036854775808"},
		{cmd("DECRBY", "n", "1"), "nil"},
		{cmd("GET", "n"), "-9223372036854775808"},
	})

	ttl, err := strconv.ParseInt(execute(engine, session, "TTL", "k").String(), 10, 64)
	if err != nil || ttl <= 0 {
		t.Fatalf("TTL after a large EXPIRE = %d, %v", ttl, err)
	}
}

func TestExpiry(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SET", "k", "v", "EX", "100"), "OK"},
		{cmd("TTL", "k"), "100"},
		{cmd("PERSIST", "k"), "1"},
		{cmd("PERSIST", "k"), "0"},
		{cmd("TTL", "k"), "-1"},
		{cmd("EXPIRETIME", "k"), "-1"},
		{cmd("TTL", "missing"), "-2"},
		{cmd("EXPIRETIME", "missing"), "-2"},
		{cmd("EXPIRE", "missing", "10"), "0"},
		{cmd("EXPIRE", "k", "0"), "1"},
		{cmd("EXISTS", "k"), "0"},
	})

	deadline := time.Now().Add(time.Hour).Unix()
	execute(engine, session, "SET", "at", "v")
	if got := execute(engine, session, "EXPIREAT", "at", strconv.FormatInt(deadline, 10)).String(); got != "1" {
		t.Fatalf("EXPIREAT = %q", got)
	}
	if got := execute(engine, session, "EXPIRETIME", "at").String(); got != strconv.FormatInt(deadline, 10) {
		t.Errorf("EXPIRETIME = %q, want %d", got, deadline)
	}
}

func TestExpiredEntriesArePurgedOnAccess(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	stale := entries.NewString("stale", "v")
	stale.SetTTL(-time.Second)
	engine.store.Set("stale", stale)

	if got := execute(engine, session, "GET", "stale").String(); got != "nil" {
		t.Errorf("GET on expired key = %q", got)
	}
	if engine.store.Contains("stale") {
		t.Error("expired key still stored after access")
	}
}

func TestDefaultTTL(t *testing.T) {
	engine := NewEngine(keyspace.New(), Options{DefaultTTL: time.Minute})
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	execute(engine, session, "SET", "k", "v")
	if got := execute(engine, session, "TTL", "k").String(); got != "60" {
		t.Errorf("TTL with default = %q", got)
	}
	execute(engine, session, "SET", "k", "v", "EX", "5")
	if got := execute(engine, session, "TTL", "k").String(); got != "5" {
		t.Errorf("TTL with EX = %q", got)
	}
}

func TestGenericKeyCommands(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SET", "user:1", "a"), "OK"},
		{cmd("SET", "user:2", "b"), "OK"},
		{cmd("RPUSH", "other", "x"), "1"},
		{cmd("KEYS", "user:*"), "1) user:1\n2) user:2"},
		{cmd("DBSIZE"), "3"},
		{cmd("TYPE", "other"), "list"},
		{cmd("TYPE", "user:1"), "string"},
		{cmd("TYPE", "missing"), "none"},
		{cmd("EXISTS", "user:1", "user:2", "missing"), "2"},
		{cmd("COPY", "user:1", "copy"), "1"},
		{cmd("COPY", "user:2", "copy"), "0"},
		{cmd("COPY", "user:2", "copy", "REPLACE"), "1"},
		{cmd("GET", "copy"), "b"},
		{cmd("RENAME", "missing", "x"), "nil"},
		{cmd("RENAME", "copy", "user:1"), "OK"},
		{cmd("GET", "user:1"), "b"},
		{cmd("DEL", "user:1", "user:2", "missing"), "2"},
		{cmd("RANDOMKEY"), "other"},
	})
}

func TestSort(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("RPUSH", "l", "3", "10", "2"), "3"},
		{cmd("SORT", "l"), "1) 2\n2) 3\n3) 10"},
		{cmd("SORT", "l", "DESC", "LIMIT", "0", "2"), "1) 10\n2) 3"},
		{cmd("SORT", "l", "ALPHA"), "1) 10\n2) 2\n3) 3"},
		{cmd("RPUSH", "w", "b", "a"), "2"},
		{cmd("SORT", "w"), "One or more scores can't be converted into double."},
		{cmd("SORT", "w", "ALPHA"), "1) a\n2) b"},
		{cmd("SORT", "l", "STORE", "sorted"), "3"},
		{cmd("LRANGE", "sorted", "0", "-1"), "1) 2\n2) 3\n3) 10"},
		{cmd("SORT", "missing"), ""},
	})
}

func TestLists(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("RPUSH", "l", "a", "b", "c"), "3"},
		{cmd("LPUSH", "l", "z"), "4"},
		{cmd("LRANGE", "l", "0", "-1"), "1) z\n2) a\n3) b\n4) c"},
		{cmd("LINDEX", "l", "-1"), "c"},
		{cmd("LINDEX", "l", "10"), "nil"},
		{cmd("LINSERT", "l", "BEFORE", "b", "x"), "5"},
		{cmd("LINSERT", "l", "AFTER", "nope", "y"), "-1"},
		{cmd("LINSERT", "missing", "BEFORE", "a", "b"), "0"},
		{cmd("LSET", "l", "10", "v"), "Index out of range."},
		{cmd("LSET", "l", "0", "first"), "OK"},
		{cmd("LLEN", "l"), "5"},
		{cmd("LPOP", "l"), "first"},
		{cmd("RPOP", "l"), "c"},
		{cmd("LRANGE", "l", "0", "-1"), "1) a\n2) x\n3) b"},
		{cmd("LLEN", "missing"), "0"},
	})
}

func TestBrpopImmediate(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("RPUSH", "second", "a", "b"), "2"},
		{cmd("BRPOP", "first", "second", "1"), "1) second\n2) b"},
		{cmd("BRPOP", "none", "0"), "nil"},
	})
}

func TestBrpopTimesOut(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	execute(engine, session, "RPUSH", "q", "x")
	execute(engine, session, "RPOP", "q")

	started := time.Now()
	if got := execute(engine, session, "BRPOP", "q", "0.05").String(); got != "nil" {
		t.Errorf("BRPOP = %q", got)
	}
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v", elapsed)
	}

	list, _ := keyspace.Lookup[*entries.ListEntry](engine.store, "q")
	if list.Waiters() != 0 {
		t.Errorf("%d waiters left registered", list.Waiters())
	}
}

// Waits until a BRPOP is parked on the list
func waitForWaiter(t *testing.T, list *entries.ListEntry) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for list.Waiters() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("BRPOP never registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBrpopWakesOnPush(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	execute(engine, session, "RPUSH", "q", "x")
	execute(engine, session, "RPOP", "q")
	list, _ := keyspace.Lookup[*entries.ListEntry](engine.store, "q")

	result := make(chan string, 1)
	go func() {
		result <- execute(engine, session, "BRPOP", "q", "0").String()
	}()

	waitForWaiter(t, list)
	other := engine.NewSession(context.Background(), nil)
	defer other.Close()
	execute(engine, other, "LPUSH", "q", "y")

	select {
	case got := <-result:
		if got != "1) q\n2) y" {
			t.Errorf("BRPOP = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("BRPOP not woken by push")
	}
}

func TestBrpopCancelledBySessionClose(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)

	execute(engine, session, "RPUSH", "q", "x")
	execute(engine, session, "RPOP", "q")
	list, _ := keyspace.Lookup[*entries.ListEntry](engine.store, "q")

	result := make(chan string, 1)
	go func() {
		result <- execute(engine, session, "BRPOP", "q", "0").String()
	}()

	waitForWaiter(t, list)
	session.Close()

	select {
	case got := <-result:
		if got != "nil" {
			t.Errorf("BRPOP = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("BRPOP not cancelled")
	}
	if list.Waiters() != 0 {
		t.Errorf("%d waiters left registered", list.Waiters())
	}
}

func TestSets(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SADD", "s", "c", "a", "b"), "3"},
		{cmd("SADD", "s", "a"), "0"},
		{cmd("SMEMBERS", "s"), "1) a\n2) b\n3) c"},
		{cmd("SISMEMBER", "s", "a"), "1"},
		{cmd("SMISMEMBER", "s", "a", "x"), "1) 1\n2) 0"},
		{cmd("SADD", "t", "b", "c", "d"), "3"},
		{cmd("SINTER", "s", "t"), "1) b\n2) c"},
		{cmd("SUNION", "s", "t"), "1) a\n2) b\n3) c\n4) d"},
		{cmd("SDIFF", "s", "t"), "1) a"},
		{cmd("SDIFF", "missing", "t"), ""},
		{cmd("SDIFFSTORE", "d", "s", "t"), "1"},
		{cmd("SMEMBERS", "d"), "1) a"},
		{cmd("SUNIONSTORE", "u", "s", "missing"), "3"},
		{cmd("SINTERSTORE", "d", "s", "missing"), "0"},
		{cmd("EXISTS", "d"), "0"},
		{cmd("SMOVE", "s", "t", "a"), "1"},
		{cmd("SMOVE", "s", "t", "a"), "0"},
		{cmd("SCARD", "t"), "4"},
		{cmd("SREM", "t", "a", "zz"), "1"},
	})
}

func TestWrongTypeReadsAsMissing(t *testing.T) {
	engine := newTestEngine()
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("SET", "k", "v"), "OK"},
		{cmd("LLEN", "k"), "0"},
		{cmd("RPUSH", "k", "x"), "0"},
		{cmd("SMEMBERS", "k"), ""},
		{cmd("HGET", "k", "f"), "nil"},
		{cmd("GET", "k"), "v"},
		{cmd("RPUSH", "l", "x"), "1"},
		{cmd("SET", "l", "overwritten"), "OK"},
		{cmd("GET", "l"), "overwritten"},
	})
}

type countingSaver struct {
	saves      int
	background int
	last       time.Time
}

func (s *countingSaver) Save(context.Context) error {
	s.saves++
	s.last = time.Unix(1700000000, 0)
	return nil
}

func (s *countingSaver) BackgroundSave() {
	s.background++
}

func (s *countingSaver) LastSave() time.Time {
	return s.last
}

func TestPersistenceCommands(t *testing.T) {
	saver := &countingSaver{}
	engine := NewEngine(keyspace.New(), Options{Saver: saver})
	session := engine.NewSession(context.Background(), nil)
	defer session.Close()

	runScenario(t, engine, session, []scenario{
		{cmd("LASTSAVE"), "0"},
		{cmd("SAVE"), "OK"},
		{cmd("BGSAVE"), "Background saving started"},
		{cmd("LASTSAVE"), "1700000000"},
	})
	if saver.saves != 1 || saver.background != 1 {
		t.Errorf("saves = %d, background = %d", saver.saves, saver.background)
	}
}
