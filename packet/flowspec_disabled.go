//go:build noflowspec

package packet

import "bytes"

func serializeFlowspecNLRI(buf *bytes.Buffer, n FlowspecNLRI) error {
	return ErrFlowspecDisabled
}

func decodeFlowspecNLRI(buf *bytes.Buffer, afi AFI) (FlowspecNLRI, error) {
	return FlowspecNLRI{}, ErrFlowspecDisabled
}
