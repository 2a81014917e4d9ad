// Package registry implements the fleet-wide worker location plane. It uses
// the cache engine itself as coordination substrate: pods heartbeat into a
// reserved namespace and publish which worker ids are warm locally, so any
// pod can route an invocation to a pod that already holds the code.
package registry

import (
	"context"
	"errors"
)

// Namespace is the reserved namespace holding all registry state.
const Namespace = "worker-registry"

// Key TTLs, in seconds.
const (
	heartbeatTTL = 30
	workersTTL   = 30
	metaTTL      = 300
	locationTTL  = 60
)

// staleAfterMs filters pod stanzas whose last heartbeat is older than this
// on every read.
const staleAfterMs = 60_000

// PodInfo is one pod's heartbeat payload.
type PodInfo struct {
	PodID       string `json:"podId"`
	Region      string `json:"region"`
	Endpoint    string `json:"endpoint"`
	WorkerCount int    `json:"workerCount"`
	Timestamp   int64  `json:"timestamp"`
}

// PodStanza is one pod's entry inside a worker location record.
type PodStanza struct {
	PodID             string `json:"podId"`
	Region            string `json:"region"`
	Endpoint          string `json:"endpoint"`
	LastHeartbeat     int64  `json:"lastHeartbeat"`
	ActiveInvocations int64  `json:"activeInvocations"`
}

// WorkerLocation maps a worker id to the pods holding its code warm.
type WorkerLocation struct {
	WorkerID  string            `json:"workerId"`
	CodeCID   string            `json:"codeCid"`
	WarmPods  []PodStanza       `json:"warmPods"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	UpdatedAt int64             `json:"updatedAt"`
}

// WorkerDefinition is the durable description of a deployable worker.
type WorkerDefinition struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	CodeCID  string            `json:"codeCid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Active   bool              `json:"active"`
}

// Source classifies which tier answered a GetWorker lookup.
type Source string

// Lookup sources
const (
	SourceMemory     Source = "memory"
	SourceCache      Source = "cache"
	SourcePersistent Source = "persistent"
	SourceMiss       Source = ""
)

// ErrWorkerNotFound is returned by PersistentStore implementations when no
// definition exists.
var ErrWorkerNotFound = errors.New("worker not found")

// PersistentStore is the narrow interface onto the external durable store of
// worker definitions.
type PersistentStore interface {
	Get(ctx context.Context, id string) (*WorkerDefinition, error)
	GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error)
	ListActive(ctx context.Context) ([]*WorkerDefinition, error)
}

// Substrate is the slice of the cache engine the registry rides on.
type Substrate interface {
	Set(namespace, key, value string, ttlSeconds int64) error
	Get(namespace, key string) (string, bool, error)
}
