// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"gitlab.com/NebulousLabs/go-upnp"
)

// ForwardFeedPort forwards the checkpoint feed port using UPnP and returns
// the router's external IP along with whether the forward took effect.
func ForwardFeedPort(port uint16) (string, bool, error) {
	// discover router
	router, err := upnp.Discover()
	if err != nil {
		return "", false, err
	}

	// discover external IP
	ip, err := router.ExternalIP()
	if err != nil {
		return "", false, err
	}

	// forward the port
	if err := router.Forward(port, "vireo checkpoint feed"); err != nil {
		return "", false, err
	}

	// check the port
	ok, err := router.IsForwardedTCP(port)
	if err != nil {
		return "", false, err
	}
	return ip, ok, nil
}

// ClearFeedPort removes the feed port forward on shutdown. Returns true if
// the port is no longer forwarded.
func ClearFeedPort(port uint16) (bool, error) {
	// discover router
	router, err := upnp.Discover()
	if err != nil {
		return false, err
	}

	// clear the port
	if err := router.Clear(port); err != nil {
		return false, err
	}

	// check the port
	ok, err := router.IsForwardedTCP(port)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
