// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// vaulticd is the Vaultic sync daemon. It authenticates against the
// bootstrap service, opens the local encrypted store, and keeps the
// vault reconciled with the server over the authenticated channel.
package main
