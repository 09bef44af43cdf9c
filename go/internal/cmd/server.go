package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chzzk-auction/auctionsync/go/internal/auction/overlay"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/session"
	"github.com/chzzk-auction/auctionsync/go/internal/clientconfig"
)

func setupServer(cfg clientconfig.Config, svc *session.Service, gatherer prometheus.Gatherer) *http.Server {
	return overlay.NewServer(cfg.OverlayPort, overlay.NewHandler(svc, gatherer))
}
