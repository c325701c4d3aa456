package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateTransactionNoFormat(t *testing.T) {
	if err := Init(7); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 1, 15, 14, 30, 52, 0, time.FixedZone("X", 3*3600))
	no := GenerateTransactionNo(at)
	if !strings.HasPrefix(no, "TXN20240115113052") {
		t.Fatalf("no=%q want UTC timestamp prefix", no)
	}
	if len(no) != len("TXN")+14+8 {
		t.Fatalf("len=%d no=%q", len(no), no)
	}
}

func TestNextIDIsUnique(t *testing.T) {
	seen := make(map[int64]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := NextID()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestInitRejectsOutOfRangeNode(t *testing.T) {
	if err := Init(4096); err == nil {
		t.Fatal("expected error for node 4096")
	}
}
