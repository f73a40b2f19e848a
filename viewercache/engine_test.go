package viewercache

import (
	"errors"
	"testing"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
	"gitlab.com/tinyland/lab/rfbcache/rhash"
)

const rawEncoding int32 = 0

type rawDecoder struct{}

func (rawDecoder) Decode(payload []byte, rect pixfmt.Rect, format pixfmt.PixelFormat) ([]byte, error) {
	want := int(rect.Width) * int(rect.Height) * format.BytesPerPixel()
	if len(payload) != want {
		return nil, errors.New("payload size mismatch")
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

type fakeStore struct {
	entries map[[16]byte]*cachecore.Entry
}

func newFakeStore() *fakeStore { return &fakeStore{entries: make(map[[16]byte]*cachecore.Entry)} }

func (f *fakeStore) Insert(hash [16]byte, entry *cachecore.Entry, isPersistable bool) error {
	f.entries[hash] = entry
	return nil
}

func (f *fakeStore) Lookup(hash [16]byte, width, height uint16) (*cachecore.Entry, bool) {
	e, ok := f.entries[hash]
	if !ok || e.Width != width || e.Height != height {
		return nil, false
	}
	return e, true
}

func testRect() pixfmt.Rect { return pixfmt.Rect{Width: 8, Height: 8} }

func solidPayload(n int, v byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		if i%4 != 3 {
			buf[i] = v
		}
	}
	return buf
}

func TestCachedRectRefMissEnqueuesRequest(t *testing.T) {
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, nil)
	_, hit := e.OnCachedRectRef(testRect(), 123)
	if hit {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestCachedRectInitStoresAndRefHits(t *testing.T) {
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, nil)
	rect := testRect()
	payload := solidPayload(8*8*4, 0xAB)

	pixels, err := e.OnCachedRectInit(rect, 42, rawEncoding, payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(pixels) != len(payload) {
		t.Fatalf("expected %d decoded bytes, got %d", len(payload), len(pixels))
	}

	got, hit := e.OnCachedRectRef(rect, 42)
	if !hit {
		t.Fatalf("expected hit after init")
	}
	if len(got) != len(payload) {
		t.Fatalf("ref returned wrong pixel length")
	}
}

func TestCachedRectRefDimensionMismatchMisses(t *testing.T) {
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, nil)
	rect := testRect()
	payload := solidPayload(8*8*4, 0xCC)
	if _, err := e.OnCachedRectInit(rect, 7, rawEncoding, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	otherRect := pixfmt.Rect{Width: 9, Height: 8}
	_, hit := e.OnCachedRectRef(otherRect, 7)
	if hit {
		t.Fatalf("dimension-mismatched lookup must miss (spec I1)")
	}
}

func TestCachedRectInitRejectsShortPayload(t *testing.T) {
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, nil)
	_, err := e.OnCachedRectInit(testRect(), 1, rawEncoding, []byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected an error for a too-short payload")
	}
}

func TestCachedRectInitUnknownEncodingErrors(t *testing.T) {
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{}, nil)
	_, err := e.OnCachedRectInit(testRect(), 1, 999, solidPayload(8*8*4, 1))
	if err == nil {
		t.Fatalf("expected an error for an unregistered inner encoding")
	}
}

func TestPersistentRectInitDispatchesToStoreAndRefHits(t *testing.T) {
	store := newFakeStore()
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, store)
	rect := testRect()
	payload := solidPayload(8*8*4, 0x77)

	var hash [16]byte
	hash[0] = 1
	if _, err := e.OnPersistentRectInit(rect, hash, rawEncoding, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected persistent store to receive one insert")
	}

	_, hit := e.OnPersistentRectRef(rect, hash)
	if !hit {
		t.Fatalf("expected persistent ref hit after init")
	}
}

func TestPersistentRectRefMissEnqueuesQuery(t *testing.T) {
	store := newFakeStore()
	e := New(DefaultConfig(), rhash.New(rhash.DefaultOptions()), nil, store)
	var hash [16]byte
	hash[0] = 9
	_, hit := e.OnPersistentRectRef(testRect(), hash)
	if hit {
		t.Fatalf("expected miss on empty persistent store")
	}
	queries := e.TakePendingQueries()
	if len(queries) != 1 || queries[0] != hash {
		t.Fatalf("expected one pending query for the missed hash, got %v", queries)
	}
}

func TestSessionEvictionQueuesPendingEviction(t *testing.T) {
	e := New(Config{CapacityBytes: 8 * 8 * 4}, rhash.New(rhash.DefaultOptions()), map[int32]Decoder{rawEncoding: rawDecoder{}}, nil)
	rect := testRect()
	if _, err := e.OnCachedRectInit(rect, 1, rawEncoding, solidPayload(8*8*4, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.OnCachedRectInit(rect, 2, rawEncoding, solidPayload(8*8*4, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	evicted := e.TakePendingEvictions()
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("expected id 1 to be evicted and queued, got %v", evicted)
	}
}
