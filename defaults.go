// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

// LatestCheckpointHeight is the highest compiled-in mainnet pin. It's used
// to judge whether a node is still inside the checkpointed span of the chain.
const LatestCheckpointHeight = 216000

// A compiled-in checkpoint. The optional cumulative difficulty pin guards
// against an attacker re-mining a pinned block ID on a weaker chain.
type checkpointLine struct {
	height     uint64
	hash       string
	difficulty string // decimal; "" pins the ID alone
}

// mainnetCheckpoints are known height and block ID pairs on the mainnet
// chain. Testnet and stagenet restart too often to be worth pinning.
var mainnetCheckpoints = []checkpointLine{
	{21600, "00000000a1c5d430b8298166e42dd8427005c26e1b3c7a331f8b6c55e935021d", ""},
	{43200, "000000004f704a36e33ff2557b2cbd5b0e604ec1bfbbb5a9de8b0ad03ecc3a0f", ""},
	{64800, "0000000009660e0701c35a352f7ef615a1ade6a1bb45663a4e05e4e4723e085d", ""},
	{86400, "000000000b43192567936eec210ed165d5c2d341dc3ee52ceee278fecb8e19d2", ""},
	{108000, "0000000001feb88a6c2e9e935cf64fcde1d2875bca637dd4c5ad80d9e62bb3d7", ""},
	{129600, "00000000008e00c090b5dbc2de8b692b61d0be4aed6a039bd929e91153ac8cad", ""},
	{151200, "0000000000c4deaa44c34a950c453d94e45ca23a9e1df2a441e4d723ef0fc4ae", "81926727163140"},
	{172800, "00000000004823a7725e1b1e1c06b2f55d4c37dc4d8eca6f6b8e9f1d0b0c25f6", "132167517712384"},
	{194400, "000000000017d6bd45be51cbd0f1420d9c2ed4ef4fa3d04e5e376e7157aa44b1", "209927517293921"},
	{216000, "00000000000a5ed29cde1cca9ea9e6cc38c60e2ae6b8e1bdb937a2bbc1e1255f", "351004881227914"},
}
