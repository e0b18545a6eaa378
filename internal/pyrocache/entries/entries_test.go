package entries

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	pyroerrors "pyrocache/internal/pyrocache/errors"
)

func TestMetadataExpiry(t *testing.T) {
	entry := NewString("foo", "bar")

	if entry.IsExpired() {
		t.Fatal("fresh entry reported expired")
	}
	if _, ok := entry.TTL(); ok {
		t.Fatal("fresh entry has a ttl")
	}

	entry.SetTTL(time.Hour)
	if entry.IsExpired() {
		t.Fatal("entry with an hour left reported expired")
	}
	deadline, ok := entry.ExpiresAt()
	if !ok || time.Until(deadline) < 59*time.Minute {
		t.Fatalf("unexpected deadline %v", deadline)
	}

	entry.SetTTL(-time.Second)
	if !entry.IsExpired() {
		t.Fatal("entry with a past deadline not expired")
	}

	if !entry.Persist() {
		t.Fatal("Persist reported no ttl")
	}
	if entry.IsExpired() {
		t.Fatal("persisted entry still expired")
	}
}

func TestTouchDoesNotExtendTTL(t *testing.T) {
	entry := NewString("foo", "bar")
	entry.SetTTL(20 * time.Millisecond)
	before, _ := entry.ExpiresAt()

	time.Sleep(5 * time.Millisecond)
	entry.Touch()

	after, _ := entry.ExpiresAt()
	if !before.Equal(after) {
		t.Errorf("touch moved deadline from %v to %v", before, after)
	}
	if !entry.LastAccessed().After(entry.CreatedAt()) {
		t.Error("touch did not update last access")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := NewList("a", "x", "y")
	clone := original.Clone("b").(*ListEntry)
	clone.PushRight("z")

	if original.Len() != 2 {
		t.Errorf("original mutated through clone: %v", original.Values())
	}
	if clone.Key() != "b" {
		t.Errorf("clone key = %q", clone.Key())
	}
	if clone.Type() != ListType {
		t.Errorf("clone type = %v", clone.Type())
	}
}

func TestStringOperations(t *testing.T) {
	entry := NewString("k", "Hello World")

	if got := entry.GetRange(0, 4); got != "Hello" {
		t.Errorf("GetRange(0, 4) = %q", got)
	}
	if got := entry.GetRange(-5, -1); got != "World" {
		t.Errorf("GetRange(-5, -1) = %q", got)
	}
	if got := entry.GetRange(5, 2); got != "" {
		t.Errorf("inverted range = %q", got)
	}

	if length := entry.SetRange(6, "Redis"); length != 11 || entry.Value() != "Hello Redis" {
		t.Errorf("SetRange = %d %q", length, entry.Value())
	}

	padded := NewString("p", "")
	if length := padded.SetRange(3, "ab"); length != 5 || padded.Value() != "\x00\x00\x00ab" {
		t.Errorf("padded SetRange = %d %q", length, padded.Value())
	}

	if length := entry.Append("!"); length != 12 {
		t.Errorf("Append length = %d", length)
	}

	counter := NewString("c", "10")
	if value, err := counter.IncrBy(-3); err != nil || value != 7 {
		t.Errorf("IncrBy = %d, %v", value, err)
	}
	if _, err := entry.IncrBy(1); !errors.Is(err, pyroerrors.ErrorNotInteger) {
		t.Errorf("IncrBy on text err = %v", err)
	}
	overflow := NewString("o", "9223372036854775807")
	if _, err := overflow.IncrBy(1); err == nil {
		t.Error("overflow not detected")
	}
}

func TestListOperations(t *testing.T) {
	list := NewList("l")
	list.PushRight("b", "c")
	list.PushLeft("a")

	if got := list.Values(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("values = %v", got)
	}
	if value, _ := list.Index(-1); value != "c" {
		t.Errorf("Index(-1) = %q", value)
	}
	if _, ok := list.Index(3); ok {
		t.Error("Index(3) should miss")
	}
	if got := list.Range(1, -1); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("Range(1, -1) = %v", got)
	}
	if length := list.Insert(true, "b", "x"); length != 4 {
		t.Errorf("Insert before = %d", length)
	}
	if length := list.Insert(false, "missing", "x"); length != -1 {
		t.Errorf("Insert with missing pivot = %d", length)
	}
	if !list.Set(0, "z") {
		t.Error("Set(0) failed")
	}
	if value, _ := list.PopLeft(); value != "z" {
		t.Errorf("PopLeft = %q", value)
	}
	if value, _ := list.PopRight(); value != "c" {
		t.Errorf("PopRight = %q", value)
	}
	if got := list.Values(); !slices.Equal(got, []string{"x", "b"}) {
		t.Errorf("values after pops = %v", got)
	}
}

func TestListSubscribe(t *testing.T) {
	list := NewList("l")
	wake := make(chan struct{}, 1)
	unsubscribe := list.Subscribe(wake)

	list.PushRight("a")
	list.PushRight("b")

	select {
	case <-wake:
	default:
		t.Fatal("push did not wake subscriber")
	}

	unsubscribe()
	unsubscribe()
	if list.Waiters() != 0 {
		t.Errorf("waiters after unsubscribe = %d", list.Waiters())
	}

	list.PushRight("c")
	select {
	case <-wake:
		t.Fatal("unsubscribed channel was woken")
	default:
	}
}

func TestSetAlgebraPartitionsUnion(t *testing.T) {
	a := NewSet("a", "1", "2", "3", "4")
	b := NewSet("b", "3", "4", "5")

	left := a.Diff(b).Members()
	both := a.Intersect(b).Members()
	right := b.Diff(a).Members()

	all := append(append(append([]string{}, left...), both...), right...)
	slices.Sort(all)
	if want := a.Union(b).Members(); !slices.Equal(all, want) {
		t.Errorf("partition = %v, union = %v", all, want)
	}
	if a.Len() != 4 || b.Len() != 3 {
		t.Error("operands mutated")
	}
	if got := a.Intersect(nil).Len(); got != 0 {
		t.Errorf("intersect with missing set = %d", got)
	}
}

func TestSetAddIsIdempotent(t *testing.T) {
	set := NewSet("s")
	if added := set.Add("a", "b", "a"); added != 2 {
		t.Errorf("first add = %d", added)
	}
	if added := set.Add("a"); added != 0 {
		t.Errorf("re-add = %d", added)
	}
	if set.Len() != 2 {
		t.Errorf("len = %d", set.Len())
	}
}

func members(scored []ScoredMember) []string {
	names := make([]string, len(scored))
	for i, member := range scored {
		names[i] = member.Member
	}
	return names
}

func TestSortedSetOrdering(t *testing.T) {
	zset := NewSortedSet("z")
	zset.Add(2, "b")
	zset.Add(1, "a")
	zset.Add(2, "aa")

	if got := members(zset.Members()); !slices.Equal(got, []string{"a", "aa", "b"}) {
		t.Fatalf("order = %v", got)
	}

	if added := zset.Add(5, "a"); added {
		t.Error("re-adding a member reported new")
	}
	if score, _ := zset.Score("a"); score != 5 {
		t.Errorf("score after re-add = %v", score)
	}
	if zset.Len() != 3 {
		t.Errorf("len = %d", zset.Len())
	}

	if rank, ok := zset.Rank("a"); !ok || rank != 2 {
		t.Errorf("rank of a = %d, %v", rank, ok)
	}
	if rank, _ := zset.Rank("aa"); rank != 0 {
		t.Errorf("rank of aa = %d", rank)
	}
}

func TestSortedSetIncrByRejectsNaN(t *testing.T) {
	zset := NewSortedSet("z", ScoredMember{"a", 1})

	if score, err := zset.IncrBy("m", math.Inf(1)); err != nil || !math.IsInf(score, 1) {
		t.Fatalf("IncrBy +inf = %v, %v", score, err)
	}
	if _, err := zset.IncrBy("m", math.Inf(-1)); !errors.Is(err, pyroerrors.ErrorNotANumber) {
		t.Fatalf("IncrBy -inf err = %v", err)
	}
	if score, _ := zset.Score("m"); !math.IsInf(score, 1) {
		t.Errorf("score after rejected increment = %v", score)
	}
	if got := members(zset.Members()); !slices.Equal(got, []string{"a", "m"}) {
		t.Errorf("order = %v", got)
	}
	if removed := zset.Remove("m"); removed != 1 || zset.Len() != 1 {
		t.Errorf("Remove = %d, len = %d", removed, zset.Len())
	}
}

func TestSortedSetRanges(t *testing.T) {
	zset := NewSortedSet("z",
		ScoredMember{"a", 1}, ScoredMember{"b", 2}, ScoredMember{"c", 3}, ScoredMember{"d", 4})

	if got := members(zset.RangeByIndex(0, -1, false)); !slices.Equal(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("index range = %v", got)
	}
	if got := members(zset.RangeByIndex(0, 1, true)); !slices.Equal(got, []string{"d", "c"}) {
		t.Errorf("reversed index range = %v", got)
	}

	min, _ := ParseScoreBound("(1")
	max, _ := ParseScoreBound("+inf")
	if got := members(zset.RangeByScore(min, max, false)); !slices.Equal(got, []string{"b", "c", "d"}) {
		t.Errorf("score range = %v", got)
	}
	if count := zset.Count(min, max); count != 3 {
		t.Errorf("count = %d", count)
	}

	lexMin, _ := ParseLexBound("[b")
	lexMax, _ := ParseLexBound("(d")
	if got := members(zset.RangeByLex(lexMin, lexMax, false)); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("lex range = %v", got)
	}
	if _, err := ParseLexBound("b"); err == nil {
		t.Error("lex bound without prefix accepted")
	}

	if popped := members(zset.PopMax(2)); !slices.Equal(popped, []string{"d", "c"}) {
		t.Errorf("PopMax = %v", popped)
	}
	if popped := members(zset.PopMin(5)); !slices.Equal(popped, []string{"a", "b"}) {
		t.Errorf("PopMin = %v", popped)
	}
	if zset.Len() != 0 {
		t.Errorf("len after pops = %d", zset.Len())
	}
}

func TestSortedSetAlgebraIsLeftBiased(t *testing.T) {
	left := NewSortedSet("l", ScoredMember{"a", 1}, ScoredMember{"b", 2})
	right := NewSortedSet("r", ScoredMember{"b", 20}, ScoredMember{"c", 30})

	union := left.Union(right)
	if score, _ := union.Score("b"); score != 2 {
		t.Errorf("union took score %v for b", score)
	}
	if score, _ := union.Score("c"); score != 30 {
		t.Errorf("union score for c = %v", score)
	}

	if got := members(left.Diff(right).Members()); !slices.Equal(got, []string{"a"}) {
		t.Errorf("diff = %v", got)
	}
	if got := members(left.Intersect(right).Members()); !slices.Equal(got, []string{"b"}) {
		t.Errorf("intersect = %v", got)
	}
	if left.Len() != 2 || right.Len() != 2 {
		t.Error("operands mutated")
	}
}

func TestHashOperations(t *testing.T) {
	hash := NewHash("h", nil)
	if !hash.Set("f", "1") {
		t.Error("new field not reported")
	}
	if created := hash.SetMany(map[string]string{"f": "2", "g": "x"}); created != 1 {
		t.Errorf("SetMany created = %d", created)
	}
	if value, err := hash.IncrBy("f", 5); err != nil || value != 7 {
		t.Errorf("IncrBy = %d, %v", value, err)
	}
	if value, err := hash.IncrBy("missing", 3); err != nil || value != 3 {
		t.Errorf("IncrBy missing = %d, %v", value, err)
	}
	if _, err := hash.IncrBy("g", 1); err == nil {
		t.Error("IncrBy on text field succeeded")
	}
	if got := hash.Fields(); !slices.Equal(got, []string{"f", "g", "missing"}) {
		t.Errorf("fields = %v", got)
	}
	if deleted := hash.Delete("g", "nope"); deleted != 1 {
		t.Errorf("Delete = %d", deleted)
	}
}

var (
	palermo = GeoPoint{Longitude: 13.361389, Latitude: 38.115556}
	catania = GeoPoint{Longitude: 15.087269, Latitude: 37.502669}
)

func TestGeoDistanceAndHash(t *testing.T) {
	index := NewGeo("Sicily", nil)
	index.Add("Palermo", palermo)
	index.Add("Catania", catania)

	distance, ok := index.Distance("Palermo", "Catania")
	if !ok || math.Abs(distance-166274.1516) > 1 {
		t.Errorf("distance = %v", distance)
	}

	hash, _ := index.Hash("Palermo")
	if len(hash) != GeohashPrecision || !strings.HasPrefix(hash, "sqc8b49rny") {
		t.Errorf("geohash = %q", hash)
	}
}

func TestGeoSearch(t *testing.T) {
	index := NewGeo("Sicily", map[string]GeoPoint{"Palermo": palermo, "Catania": catania})
	center := GeoPoint{Longitude: 15, Latitude: 37}

	near := index.SearchRadius(center, 100_000)
	if len(near) != 1 || near[0].Member != "Catania" {
		t.Errorf("100km radius = %+v", near)
	}

	far := index.SearchRadius(center, 200_000)
	if len(far) != 2 || far[0].Member != "Catania" || far[1].Member != "Palermo" {
		t.Errorf("200km radius = %+v", far)
	}

	boxed := index.SearchBox(center, 400_000, 400_000)
	if len(boxed) != 2 {
		t.Errorf("box = %+v", boxed)
	}
	if narrow := index.SearchBox(center, 50_000, 400_000); len(narrow) != 1 {
		t.Errorf("narrow box = %+v", narrow)
	}
}

func TestChannelPublishAndCancel(t *testing.T) {
	channel := NewChannel("news")
	first, created := channel.Subscribe(SubscriptionKey{Subscriber: 1})
	if !created {
		t.Fatal("subscription not created")
	}
	if again, created := channel.Subscribe(SubscriptionKey{Subscriber: 1}); created || again != first {
		t.Fatal("duplicate subscription created")
	}
	second, _ := channel.Subscribe(SubscriptionKey{Subscriber: 2, Pattern: "n.*"})

	if receivers := channel.Publish("hello"); receivers != 2 {
		t.Errorf("receivers = %d", receivers)
	}
	if channel.Subscribers() != 1 {
		t.Errorf("direct subscribers = %d", channel.Subscribers())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if message, err := first.Next(ctx); err != nil || message != "hello" {
		t.Errorf("Next = %q, %v", message, err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := first.Next(context.Background())
		result <- err
	}()
	channel.Unsubscribe(SubscriptionKey{Subscriber: 1})

	select {
	case err := <-result:
		if !errors.Is(err, pyroerrors.ErrorSubscriptionCancelled) {
			t.Errorf("Next after cancel = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock Next")
	}

	if receivers := channel.Publish("again"); receivers != 1 {
		t.Errorf("receivers after unsubscribe = %d", receivers)
	}
	if message, _ := second.Next(ctx); message != "hello" {
		t.Errorf("second subscriber first message = %q", message)
	}
}

func TestEntryTypeNames(t *testing.T) {
	if SortedSetType.String() != "zset" || GeospatialType.String() != "geo" {
		t.Error("unexpected type names")
	}
	if EntryType(7).Valid() {
		t.Error("tag 7 reported valid")
	}
}
