// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"fmt"
	"strings"
)

// NetworkType selects which vireo network's trusted checkpoint data applies.
type NetworkType int

const (
	MAINNET NetworkType = iota
	TESTNET
	STAGENET
)

// ParseNetworkType returns the network named by s.
func ParseNetworkType(s string) (NetworkType, error) {
	switch strings.ToLower(s) {
	case "mainnet":
		return MAINNET, nil
	case "testnet":
		return TESTNET, nil
	case "stagenet":
		return STAGENET, nil
	}
	return MAINNET, fmt.Errorf("unknown network: %s", s)
}

func (n NetworkType) String() string {
	switch n {
	case MAINNET:
		return "mainnet"
	case TESTNET:
		return "testnet"
	case STAGENET:
		return "stagenet"
	}
	return "unknown"
}

// CheckpointDomain returns the DNS name serving the network's checkpoint TXT records.
func (n NetworkType) CheckpointDomain() string {
	switch n {
	case TESTNET:
		return TESTNET_CHECKPOINT_DOMAIN
	case STAGENET:
		return STAGENET_CHECKPOINT_DOMAIN
	}
	return MAINNET_CHECKPOINT_DOMAIN
}
