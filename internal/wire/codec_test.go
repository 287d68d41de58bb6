package wire

import (
	"encoding/json"
	"testing"
)

func TestDecodeHostTruncatesMaxPeers(t *testing.T) {
	raw := []byte(`{"call":1,"data":{"game":"chess","isPublic":true,"maxPeers":4.9}}`)
	cmd, errKind := Decode(raw)
	if errKind != nil {
		t.Fatalf("unexpected error: %v", errKind)
	}
	host, ok := cmd.(HostCmd)
	if !ok {
		t.Fatalf("expected HostCmd, got %T", cmd)
	}
	if host.MaxPeers != 4 {
		t.Errorf("expected maxPeers truncated to 4, got %d", host.MaxPeers)
	}
}

func TestDecodeBadJSON(t *testing.T) {
	_, errKind := Decode([]byte(`not json`))
	if errKind == nil || *errKind != ErrBadProto {
		t.Fatalf("expected ErrBadProto, got %v", errKind)
	}
}

func TestDecodeOutOfRangeOpcode(t *testing.T) {
	_, errKind := Decode([]byte(`{"call":13,"data":{}}`))
	if errKind == nil || *errKind != ErrBadProto {
		t.Fatalf("expected ErrBadProto for out-of-range call, got %v", errKind)
	}
}

func TestDecodeServerOnlyOpcodeRejected(t *testing.T) {
	for _, call := range []int{int(OpAdd), int(OpErr)} {
		_, errKind := Decode([]byte(`{"call":` + itoa(call) + `,"data":{}}`))
		if errKind == nil || *errKind != ErrBadProto {
			t.Errorf("call %d: expected ErrBadProto, got %v", call, errKind)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame := EncodeHost(1, "QWERTY", true)
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatal(err)
	}
	if env.Call != int(OpHost) {
		t.Fatalf("expected call %d, got %d", OpHost, env.Call)
	}
	var data hostData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.ID != 1 || data.LobbyCode != "QWERTY" || !data.IsMesh {
		t.Errorf("unexpected round-tripped host data: %+v", data)
	}
}

func TestEncodeOfferPassesSDPVerbatim(t *testing.T) {
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	frame := EncodeOffer(42, offer)
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatal(err)
	}
	var data offerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.FromID != 42 {
		t.Errorf("expected fromId 42, got %d", data.FromID)
	}
	if string(data.Offer) != string(offer) {
		t.Errorf("offer payload was not passed through verbatim: %s", data.Offer)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
