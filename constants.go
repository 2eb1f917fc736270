// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

// the below values affect which checkpoints a node trusts. they are shared
// with the reference client and shouldn't be changed casually.

const MAINNET_CHECKPOINT_DOMAIN = "checkpoints.vireo.network"

const TESTNET_CHECKPOINT_DOMAIN = "testpoints.vireo.network"

const STAGENET_CHECKPOINT_DOMAIN = "stagepoints.vireo.network"

// the below values only affect seeder behavior and are safe to tune locally

const DEFAULT_DNS_PORT = 5353 // production seeders sit behind port 53

const DEFAULT_FEED_PORT = 8916

const CHECKPOINT_UPDATE_INTERVAL = 60 * 60 // seconds between refresh rounds

const MAX_DNS_CHECKPOINT_RECORDS = 12 // keeps TXT replies inside a 1232 byte EDNS payload

const DNS_RECORD_TTL = 900 // seconds

const DNS_QUERY_TIMEOUT = 10 // seconds

const FEED_QUEUE_LENGTH = 64 // outbound messages buffered per subscriber

const MAX_PROTOCOL_MESSAGE_LENGTH = 1024 * 1024 // feed messages are small; this is generous
