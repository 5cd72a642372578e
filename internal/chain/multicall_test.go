package chain

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTryAggregateRoundTrip(t *testing.T) {
	calls := []Call{
		{Target: common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8"), Data: []byte{0xf9, 0x4d, 0x46, 0x68}},
		{Target: common.HexToAddress("0x32296969Ef14EB0c6d29669C550D4a0449130230"), Data: []byte{0x55, 0xc6, 0x76, 0x28}},
	}
	input, err := packTryAggregate(calls)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	parsed, _ := getMulticallABI()
	if !bytes.Equal(input[:4], parsed.Methods["tryAggregate"].ID) {
		t.Fatalf("selector = %x", input[:4])
	}

	want := []multicallResult{
		{Success: true, ReturnData: []byte{0x01, 0x02}},
		{Success: false, ReturnData: nil},
	}
	raw, err := parsed.Methods["tryAggregate"].Outputs.Pack(want)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}
	got, err := unpackTryAggregate(raw)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(got) != 2 || !got[0].Success || got[1].Success {
		t.Fatalf("unexpected results %+v", got)
	}
	if !bytes.Equal(got[0].ReturnData, want[0].ReturnData) {
		t.Fatalf("return data = %x", got[0].ReturnData)
	}
}
