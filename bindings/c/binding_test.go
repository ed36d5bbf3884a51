//go:build cgo

package main

import (
	"bytes"
	"strings"
	"testing"
	"unsafe"

	"github.com/danmuck/lunkwill/internal/abi"
	"github.com/danmuck/lunkwill/internal/protocol/handler"
	"github.com/danmuck/lunkwill/internal/protocol/message"
)

func newArgument(t *testing.T, s string) *cArgument {
	t.Helper()
	cs := newCString(s)
	defer freeC(unsafe.Pointer(cs))
	rec := LWArgumentCreateFromString(cs)
	if rec == nil {
		t.Fatalf("LWArgumentCreateFromString(%q) returned NULL", s)
	}
	t.Cleanup(func() { LWArgumentDelete(rec) })
	return rec
}

func createFromString(t *testing.T, s string) *abi.Record {
	t.Helper()
	return view(newArgument(t, s))
}

func TestCreateFromStringLength(t *testing.T) {
	for _, s := range []string{"a", "hello", strings.Repeat("z", 1000)} {
		if r := createFromString(t, s); int(r.Length) != len(s) {
			t.Fatalf("%q: length %d", s, r.Length)
		}
	}
}

func TestCreateFromEmptyString(t *testing.T) {
	r := createFromString(t, "")
	if r.Length != 0 || r.Data != nil {
		t.Fatalf("empty record = %+v", *r)
	}
}

func TestCreateFromNullString(t *testing.T) {
	if LWArgumentCreateFromString(nil) != nil {
		t.Fatal("NULL input must return NULL")
	}
}

func TestCreateFromStringRoundTrip(t *testing.T) {
	r := createFromString(t, "abc")
	if got := string(r.Bytes()); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestCreateFromStringHello(t *testing.T) {
	r := createFromString(t, "hello")
	if r.Length != 5 || !bytes.Equal(r.Bytes(), []byte{'h', 'e', 'l', 'l', 'o'}) {
		t.Fatalf("record = %d %q", r.Length, r.Bytes())
	}
	if !r.IsRetainable {
		t.Fatal("records default to retainable")
	}
}

func TestRecordLayoutMatchesC(t *testing.T) {
	if err := abi.Compare(cLayout(), abi.Expected(abi.WordSize)); err != nil {
		t.Fatal(err)
	}
	r := createFromString(t, "hello")
	want := abi.Image(5, uintptr(unsafe.Pointer(r.Data)), true)
	if got := abi.Raw(r); !bytes.Equal(got, want) {
		t.Fatalf("record bytes %x, want %x", got, want)
	}
}

func TestCreateCopiesInput(t *testing.T) {
	buf := newCBuffer([]byte{1, 2, 3})
	defer freeC(buf)
	rec := LWArgumentCreate(buf, 3)
	defer LWArgumentDelete(rec)
	*(*byte)(buf) = 9
	if got := view(rec).Bytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("got %v", got)
	}
	if LWArgumentCreate(nil, 3) != nil {
		t.Fatal("NULL data with a length must fail")
	}
}

func TestCreateWithoutCopyingLeavesBufferAlone(t *testing.T) {
	buf := newCBuffer([]byte("xyz"))
	defer freeC(buf)
	rec := LWArgumentCreateWithoutCopying(buf, 3)
	if unsafe.Pointer(LWArgumentGetData(rec)) != buf {
		t.Fatal("borrowed record must alias the caller buffer")
	}
	LWArgumentDelete(rec)
	if got := string(unsafe.Slice((*byte)(buf), 3)); got != "xyz" {
		t.Fatalf("caller buffer changed: %q", got)
	}
}

func TestIntegerConstructorsAndGetters(t *testing.T) {
	i8 := LWArgumentCreateFrom8BitInteger(-5)
	defer LWArgumentDelete(i8)
	if LWArgumentGet8BitIntegerValue(i8) != -5 {
		t.Fatal("int8 round trip")
	}
	u16 := LWArgumentCreateFrom16BitUnsignedInteger(0xBEEF)
	defer LWArgumentDelete(u16)
	if LWArgumentGet16BitUnsignedIntegerValue(u16) != 0xBEEF {
		t.Fatal("uint16 round trip")
	}
	if !bytes.Equal(view(u16).Bytes(), []byte{0xBE, 0xEF}) {
		t.Fatalf("uint16 must be network order, got %x", view(u16).Bytes())
	}
	i32 := LWArgumentCreateFrom32BitInteger(-70000)
	defer LWArgumentDelete(i32)
	if LWArgumentGet32BitIntegerValue(i32) != -70000 {
		t.Fatal("int32 round trip")
	}
	if LWArgumentGet16BitIntegerValue(i32) != 0 {
		t.Fatal("width mismatch must read as 0")
	}
}

func TestStringValueAndRepresentation(t *testing.T) {
	rec := newArgument(t, "hello")
	s := LWArgumentGetStringValue(rec)
	defer LWFree(unsafe.Pointer(s))
	if goString(s) != "hello" {
		t.Fatalf("string value %q", goString(s))
	}

	dst := newCString(strings.Repeat(" ", 63))
	defer freeC(unsafe.Pointer(dst))
	LWArgumentGetStringRepresentation(rec, dst, 64)
	if got := goString(dst); got != "(005) <68656c6c 6f> (hello)" {
		t.Fatalf("representation %q", got)
	}
	LWArgumentGetStringRepresentation(rec, dst, 6)
	if got := goString(dst); got != "(005)" {
		t.Fatalf("truncated representation %q", got)
	}
}

func TestMessageSerializeRoundTrip(t *testing.T) {
	hello := newArgument(t, "hello")
	msg := LWMessageCreate2(7, 0, nil)
	defer LWMessageDelete(msg)
	if !bool(LWMessageAddArgument(msg, hello)) {
		t.Fatal("add argument")
	}

	var n = cSize(0)
	var out unsafe.Pointer
	if !bool(LWMessageSerialize(msg, &n, &out)) {
		t.Fatal("serialize")
	}
	defer LWFree(out)
	wire := unsafe.Slice((*byte)(out), goSize(n))
	if !bytes.Equal(wire, []byte{7, 5, 'h', 'e', 'l', 'l', 'o', 0}) {
		t.Fatalf("wire %x", wire)
	}

	used := cSize(0)
	back := LWMessageDeserialize(out, n, &used)
	defer LWMessageDelete(back)
	if goSize(used) != len(wire) || LWMessageGetMessageID(back) != 7 || LWMessageGetArgumentCount(back) != 1 {
		t.Fatalf("deserialized id=%d count=%d used=%d", LWMessageGetMessageID(back), LWMessageGetArgumentCount(back), goSize(used))
	}
	arg := LWMessageGetArgumentAtIndex(back, 0)
	defer LWArgumentDelete(arg)
	if string(view(arg).Bytes()) != "hello" {
		t.Fatalf("argument %q", view(arg).Bytes())
	}
	if LWMessageGetArgumentAtIndex(back, 1) != nil {
		t.Fatal("out of range index must return NULL")
	}

	if bad := LWMessageDeserialize(out, n-1, nil); bad._h != 0 {
		t.Fatal("incomplete data must return the zero handle")
	}
}

func TestDataHandlerDispatch(t *testing.T) {
	h := LWDataHandlerCreate(nil)
	defer LWDataHandlerDelete(h)
	d, ok := lookupDataHandler(h)
	if !ok {
		t.Fatal("handle lookup")
	}
	var got []uint8
	d.h.SetUnrecognisedMessageCallback(func(_ *handler.DataHandler, m *message.Message) {
		got = append(got, m.ID())
	})
	wire := newCBuffer([]byte{3, 1, 'a', 0, 4, 0})
	defer freeC(wire)
	if !bool(LWDataHandlerHandleData(h, wire, 6)) {
		t.Fatal("handle data")
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("dispatched %v", got)
	}
	LWDataHandlerDelete(h)
	if bool(LWDataHandlerHandleData(h, wire, 6)) {
		t.Fatal("deleted handler must reject data")
	}
}

func TestValidatorCallbackRoutesToInvalid(t *testing.T) {
	counters := newCallCounters()
	defer freeC(counters)

	v := LWValidatorCreate()
	defer LWValidatorDelete(v)
	LWValidatorSetMessageValidationCallback(v, 3, rejectMessageCallback())

	h := LWDataHandlerCreate(counters)
	defer LWDataHandlerDelete(h)
	if LWDataHandlerGetUserInfo(h) != counters {
		t.Fatal("user info must round trip")
	}
	LWDataHandlerSetValidator(h, v)
	LWDataHandlerSetMessageCallback(h, 3, countMessageCallback())
	LWDataHandlerSetMessageCallback(h, 4, countMessageCallback())
	LWDataHandlerSetInvalidMessageCallback(h, countInvalidCallback())

	wire := newCBuffer([]byte{3, 1, 'a', 0, 4, 0})
	defer freeC(wire)
	if !bool(LWDataHandlerHandleData(h, wire, 6)) {
		t.Fatal("handle data")
	}
	if dispatched, invalid := callCounts(counters); dispatched != 1 || invalid != 1 {
		t.Fatalf("dispatched=%d invalid=%d, want 1 and 1", dispatched, invalid)
	}

	// Detaching the validator lets id 3 through.
	LWDataHandlerSetValidator(h, cValidator{})
	if !bool(LWDataHandlerHandleData(h, wire, 6)) {
		t.Fatal("handle data")
	}
	if dispatched, invalid := callCounts(counters); dispatched != 3 || invalid != 1 {
		t.Fatalf("dispatched=%d invalid=%d, want 3 and 1", dispatched, invalid)
	}
}

func TestValidatorExports(t *testing.T) {
	v := LWValidatorCreate()
	rejected := LWMessageCreate2(3, 0, nil)
	defer LWMessageDelete(rejected)
	empty := LWMessageCreate2(4, 0, nil)
	defer LWMessageDelete(empty)
	withArg := LWMessageCreate2(4, 0, nil)
	defer LWMessageDelete(withArg)
	LWMessageAddArgument(withArg, newArgument(t, "x"))

	LWValidatorSetMessageValidationCallback(v, 3, rejectMessageCallback())
	if bool(LWValidatorMessageIsValid(v, rejected)) {
		t.Fatal("callback rejects id 3")
	}
	if !bool(LWValidatorRequire(v, 4, 0, nil)) {
		t.Fatal("require")
	}
	if !bool(LWValidatorMessageIsValid(v, empty)) || bool(LWValidatorMessageIsValid(v, withArg)) {
		t.Fatal("id 4 requires no arguments")
	}
	if bool(LWValidatorRequire(v, 4, 1, nil)) {
		t.Fatal("a positive count needs lengths")
	}

	LWValidatorClearMessageValidationCallbacks(v)
	if !bool(LWValidatorMessageIsValid(v, rejected)) || !bool(LWValidatorMessageIsValid(v, withArg)) {
		t.Fatal("cleared validator accepts everything")
	}

	LWValidatorDelete(v)
	if bool(LWValidatorMessageIsValid(v, empty)) {
		t.Fatal("deleted validator handle must not resolve")
	}
}

func TestDeleteFromCallbackStopsProcessing(t *testing.T) {
	counters := newCallCounters()
	defer freeC(counters)

	h := LWDataHandlerCreate(counters)
	LWDataHandlerSetMessageCallback(h, 3, countAndDeleteCallback())

	wire := newCBuffer([]byte{3, 1, 'a', 0, 3, 0, 3, 1, 'b', 0})
	defer freeC(wire)
	if !bool(LWDataHandlerHandleData(h, wire, 10)) {
		t.Fatal("handle data")
	}
	if dispatched, _ := callCounts(counters); dispatched != 1 {
		t.Fatalf("dispatched=%d, want processing to stop after the deleting callback", dispatched)
	}
	if _, ok := lookupDataHandler(h); ok {
		t.Fatal("handle must be invalid after delete")
	}
	if LWDataHandlerGetUserInfo(h) != nil || bool(LWDataHandlerHandleData(h, wire, 10)) {
		t.Fatal("deleted handler must reject calls")
	}
}
