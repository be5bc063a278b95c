// Package poller implements the resync poller.
//
// The resync poller:
//   - Periodically collects the ids of every cached order view
//   - Runs them through the batch sync engine in bounded chunks
//   - Converges views that missed pushes during an outage without a full refetch
package poller
