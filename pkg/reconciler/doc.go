/*
Package reconciler maintains the membership index.

The reconciler subscribes to configuration and roster events and rebuilds
the index from scratch whenever either changes. Bursts of events are
coalesced into a single rebuild, and a periodic resync rebuilds the index
even when no event arrives.

Builds are serialized, and each one reads the newest configuration snapshot
and roster, so a later generation never reflects older inputs than an
earlier one. The finished index is published with an atomic pointer swap;
readers call Current and never wait on a build.

Self-reported environment names that are malformed or undeclared are
logged and counted, and otherwise ignored.
*/
package reconciler
