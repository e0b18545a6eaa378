package commands

import (
	"context"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pyrocache/internal/pyrocache/protocol"
)

type HandlerFunc func(ctx context.Context, engine *Engine, request *Request) protocol.Reply

type Command struct {
	Name     string
	Run      HandlerFunc
	Validate Validator
	// Mutates the keyspace, counted towards snapshot rules
	Writes bool
	// Needs a transport able to push messages to the client
	Streams          bool
	AllowWhilePaused bool
}

type Registry map[string]Command

// Commands whose name is two words
var compoundPrefixes = map[string]bool{
	"CLIENT": true,
	"PUBSUB": true,
}

func geoSearchOptions(args []string) (geoSearch, error) {
	return parseGeoSearch(args, 0, false)
}

func geoSearchStoreOptions(args []string) (geoSearch, error) {
	if len(args) < 2 {
		return geoSearch{}, ErrorParameterCount
	}
	return parseGeoSearch(args, 1, true)
}

func NewRegistry() Registry {
	commands := []Command{
		// strings
		{Name: "GET", Run: handleGet, Validate: validate(exactly(1), keysAt(0))},
		{Name: "SET", Run: handleSet, Writes: true, Validate: validate(arity(2, 4), keysAt(0), valueAt(1), parsed(parseSetOptions))},
		{Name: "SETEX", Run: handleSetex, Writes: true, Validate: validate(exactly(3), keysAt(0), durationAt(1, time.Second, ErrorSeconds), valueAt(2))},
		{Name: "MGET", Run: handleMget, Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "MSET", Run: handleMset, Writes: true, Validate: validate(pairedFrom(0), keysEvery(0, 2), valuesEvery(1, 2))},
		{Name: "APPEND", Run: handleAppend, Writes: true, Validate: validate(exactly(2), keysAt(0), valueAt(1))},
		{Name: "STRLEN", Run: handleStrlen, Validate: validate(exactly(1), keysAt(0))},
		{Name: "INCR", Run: handleIncr, Writes: true, Validate: validate(exactly(1), keysAt(0))},
		{Name: "DECR", Run: handleDecr, Writes: true, Validate: validate(exactly(1), keysAt(0))},
		{Name: "INCRBY", Run: handleIncrby, Writes: true, Validate: validate(exactly(2), keysAt(0), integerAt(1, ErrorIncrement))},
		{Name: "DECRBY", Run: handleDecrby, Writes: true, Validate: validate(exactly(2), keysAt(0), negatableAt(1, ErrorIncrement))},
		{Name: "GETSET", Run: handleGetset, Writes: true, Validate: validate(exactly(2), keysAt(0), valueAt(1))},
		{Name: "GETRANGE", Run: handleGetrange, Validate: validate(exactly(3), keysAt(0), integerAt(1, ErrorStartIndex), integerAt(2, ErrorEndIndex))},
		{Name: "SUBSTR", Run: handleGetrange, Validate: validate(exactly(3), keysAt(0), integerAt(1, ErrorStartIndex), integerAt(2, ErrorEndIndex))},
		{Name: "SETRANGE", Run: handleSetrange, Writes: true, Validate: validate(exactly(3), keysAt(0), offsetAt(1), valueAt(2))},

		// generic
		{Name: "DEL", Run: handleDel, Writes: true, Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "EXISTS", Run: handleExists, Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "EXPIRE", Run: handleExpire, Writes: true, Validate: validate(exactly(2), keysAt(0), durationAt(1, time.Second, ErrorSeconds))},
		{Name: "PEXPIRE", Run: handlePexpire, Writes: true, Validate: validate(exactly(2), keysAt(0), durationAt(1, time.Millisecond, ErrorMilliseconds))},
		{Name: "EXPIREAT", Run: handleExpireat, Writes: true, Validate: validate(exactly(2), keysAt(0), integerAt(1, ErrorTimestamp))},
		{Name: "EXPIRETIME", Run: handleExpiretime, Validate: validate(exactly(1), keysAt(0))},
		{Name: "TTL", Run: handleTtl, Validate: validate(exactly(1), keysAt(0))},
		{Name: "PERSIST", Run: handlePersist, Writes: true, Validate: validate(exactly(1), keysAt(0))},
		{Name: "RENAME", Run: handleRename, Writes: true, Validate: validate(exactly(2), keysAt(0, 1))},
		{Name: "COPY", Run: handleCopy, Writes: true, Validate: validate(arity(2, 3), keysAt(0, 1), oneOf(2, "REPLACE"))},
		{Name: "KEYS", Run: handleKeys, Validate: exactly(1)},
		{Name: "RANDOMKEY", Run: handleRandomkey, Validate: exactly(0)},
		{Name: "TYPE", Run: handleType, Validate: validate(exactly(1), keysAt(0))},
		{Name: "DBSIZE", Run: handleDbsize, Validate: exactly(0)},
		{Name: "SORT", Run: handleSort, Writes: true, Validate: validate(keysAt(0), parsed(parseSortOptions))},
		{Name: "SAVE", Run: handleSave, Validate: exactly(0)},
		{Name: "BGSAVE", Run: handleBgsave, Validate: exactly(0)},
		{Name: "LASTSAVE", Run: handleLastsave, Validate: exactly(0)},

		// lists
		{Name: "LPUSH", Run: handleLpush, Writes: true, Validate: validate(atLeast(2), keysAt(0), valuesEvery(1, 1))},
		{Name: "RPUSH", Run: handleRpush, Writes: true, Validate: validate(atLeast(2), keysAt(0), valuesEvery(1, 1))},
		{Name: "LPOP", Run: handleLpop, Writes: true, Validate: validate(exactly(1), keysAt(0))},
		{Name: "RPOP", Run: handleRpop, Writes: true, Validate: validate(exactly(1), keysAt(0))},
		{Name: "LRANGE", Run: handleLrange, Validate: validate(exactly(3), keysAt(0), integerAt(1, ErrorStartIndex), integerAt(2, ErrorEndIndex))},
		{Name: "LINDEX", Run: handleLindex, Validate: validate(exactly(2), keysAt(0), integerAt(1, ErrorIndex))},
		{Name: "LLEN", Run: handleLlen, Validate: validate(exactly(1), keysAt(0))},
		{Name: "LSET", Run: handleLset, Writes: true, Validate: validate(exactly(3), keysAt(0), integerAt(1, ErrorIndex), valueAt(2))},
		{Name: "LINSERT", Run: handleLinsert, Writes: true, Validate: validate(exactly(4), keysAt(0), oneOf(1, "BEFORE", "AFTER"), valueAt(3))},
		{Name: "BRPOP", Run: handleBrpop, Writes: true, Validate: validate(atLeast(2), keysFrom(0), timeoutAt(-1))},

		// sets
		{Name: "SADD", Run: handleSadd, Writes: true, Validate: validate(atLeast(2), keysAt(0), valuesEvery(1, 1))},
		{Name: "SREM", Run: handleSrem, Writes: true, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "SCARD", Run: handleScard, Validate: validate(exactly(1), keysAt(0))},
		{Name: "SMEMBERS", Run: handleSmembers, Validate: validate(exactly(1), keysAt(0))},
		{Name: "SISMEMBER", Run: handleSismember, Validate: validate(exactly(2), keysAt(0))},
		{Name: "SMISMEMBER", Run: handleSmismember, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "SUNION", Run: setAlgebra(setUnion), Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "SINTER", Run: setAlgebra(setIntersect), Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "SDIFF", Run: setAlgebra(setDiff), Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "SUNIONSTORE", Run: setAlgebraStore(setUnion), Writes: true, Validate: validate(atLeast(2), keysFrom(0))},
		{Name: "SINTERSTORE", Run: setAlgebraStore(setIntersect), Writes: true, Validate: validate(atLeast(2), keysFrom(0))},
		{Name: "SDIFFSTORE", Run: setAlgebraStore(setDiff), Writes: true, Validate: validate(atLeast(2), keysFrom(0))},
		{Name: "SMOVE", Run: handleSmove, Writes: true, Validate: validate(exactly(3), keysAt(0, 1))},

		// sorted sets
		{Name: "ZADD", Run: handleZadd, Writes: true, Validate: validate(keysAt(0), pairedFrom(1), floatsEvery(1, 2, ErrorScore))},
		{Name: "ZCARD", Run: handleZcard, Validate: validate(exactly(1), keysAt(0))},
		{Name: "ZSCORE", Run: handleZscore, Validate: validate(exactly(2), keysAt(0))},
		{Name: "ZMSCORE", Run: handleZmscore, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "ZRANK", Run: handleZrank, Validate: validate(exactly(2), keysAt(0))},
		{Name: "ZREM", Run: handleZrem, Writes: true, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "ZRANGE", Run: handleZrange, Validate: validate(keysAt(0), parsed(parseZrange))},
		{Name: "ZCOUNT", Run: handleZcount, Validate: validate(keysAt(0), parsed(parseScoreRange))},
		{Name: "ZINCRBY", Run: handleZincrby, Writes: true, Validate: validate(exactly(3), keysAt(0), floatAt(1, ErrorFloatIncrement))},
		{Name: "ZPOPMIN", Run: handleZpopmin, Writes: true, Validate: validate(arity(1, 2), keysAt(0), countAt(1))},
		{Name: "ZPOPMAX", Run: handleZpopmax, Writes: true, Validate: validate(arity(1, 2), keysAt(0), countAt(1))},
		{Name: "ZMPOP", Run: handleZmpop, Writes: true, Validate: parsed(parseZmpop)},
		{Name: "ZDIFF", Run: sortedSetAlgebra(sortedSetDiff), Validate: parsed(parseAlgebraWithScores)},
		{Name: "ZUNION", Run: sortedSetAlgebra(sortedSetUnion), Validate: parsed(parseAlgebraWithScores)},
		{Name: "ZDIFFSTORE", Run: handleZdiffstore, Writes: true, Validate: validate(atLeast(3), keysAt(0), numKeysAt(1))},
		{Name: "ZINTERCARD", Run: handleZintercard, Validate: parsed(parseZintercard)},

		// hashes
		{Name: "HSET", Run: handleHset, Writes: true, Validate: validate(atLeast(3), keysAt(0), pairedFrom(1), valuesEvery(2, 2))},
		{Name: "HGET", Run: handleHget, Validate: validate(exactly(2), keysAt(0))},
		{Name: "HMGET", Run: handleHmget, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "HGETALL", Run: handleHgetall, Validate: validate(exactly(1), keysAt(0))},
		{Name: "HEXISTS", Run: handleHexists, Validate: validate(exactly(2), keysAt(0))},
		{Name: "HLEN", Run: handleHlen, Validate: validate(exactly(1), keysAt(0))},
		{Name: "HDEL", Run: handleHdel, Writes: true, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "HKEYS", Run: handleHkeys, Validate: validate(exactly(1), keysAt(0))},
		{Name: "HSTRLEN", Run: handleHstrlen, Validate: validate(exactly(2), keysAt(0))},
		{Name: "HINCRBY", Run: handleHincrby, Writes: true, Validate: validate(exactly(3), keysAt(0), integerAt(2, ErrorIncrement))},

		// geospatial
		{Name: "GEOADD", Run: handleGeoadd, Writes: true, Validate: validate(atLeast(4), keysAt(0), coordinatesFrom(1))},
		{Name: "GEOPOS", Run: handleGeopos, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "GEOHASH", Run: handleGeohash, Validate: validate(atLeast(2), keysAt(0))},
		{Name: "GEODIST", Run: handleGeodist, Validate: validate(arity(3, 4), keysAt(0), validateGeodist)},
		{Name: "GEOSEARCH", Run: handleGeosearch, Validate: validate(keysAt(0), parsed(geoSearchOptions))},
		{Name: "GEOSEARCHSTORE", Run: handleGeosearchstore, Writes: true, Validate: validate(keysAt(0, 1), parsed(geoSearchStoreOptions))},

		// pub/sub
		{Name: "PUBLISH", Run: handlePublish, Writes: true, Validate: validate(exactly(2), keysAt(0), valueAt(1))},
		{Name: "SUBSCRIBE", Run: handleSubscribe, Writes: true, Streams: true, Validate: validate(atLeast(1), keysFrom(0))},
		{Name: "UNSUBSCRIBE", Run: handleUnsubscribe, Streams: true, Validate: keysFrom(0)},
		{Name: "PSUBSCRIBE", Run: handlePsubscribe, Streams: true, Validate: atLeast(1)},
		{Name: "PUNSUBSCRIBE", Run: handlePunsubscribe, Streams: true, Validate: atLeast(0)},
		{Name: "PUBSUB CHANNELS", Run: handlePubsubChannels, Validate: arity(0, 1)},
		{Name: "PUBSUB NUMSUB", Run: handlePubsubNumsub, Validate: keysFrom(0)},

		// connection
		{Name: "PING", Run: handlePing, Validate: arity(0, 1)},
		{Name: "ECHO", Run: handleEcho, Validate: exactly(1)},
		{Name: "AUTH", Run: handleAuth, Validate: exactly(2)},
		{Name: "CLIENT GETNAME", Run: handleClientGetname, Validate: exactly(0)},
		{Name: "CLIENT SETNAME", Run: handleClientSetname, Validate: exactly(1)},
		{Name: "CLIENT ID", Run: handleClientID, Validate: exactly(0)},
		{Name: "CLIENT PAUSE", Run: handleClientPause, Validate: validate(exactly(1), integerAt(0, ErrorMilliseconds))},
		{Name: "CLIENT UNPAUSE", Run: handleClientUnpause, Validate: exactly(0), AllowWhilePaused: true},
	}

	registry := make(Registry, len(commands))
	for _, command := range commands {
		registry[command.Name] = command
	}
	return registry
}

// Finds the command named by the leading fields, case insensitively, and
// returns it with its arguments.
func (r Registry) Resolve(fields []string) (Command, []string, bool) {
	if len(fields) == 0 {
		return Command{}, nil, false
	}

	caser := cases.Upper(language.Und)
	name := caser.String(fields[0])

	if compoundPrefixes[name] {
		if len(fields) < 2 {
			return Command{}, nil, false
		}
		command, ok := r[name+" "+caser.String(fields[1])]
		return command, fields[2:], ok
	}

	command, ok := r[name]
	return command, fields[1:], ok
}
