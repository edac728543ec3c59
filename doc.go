package tinycalvin

/*
TinyCalvin is a deterministic locking scheduler for a replicated transactional key/value store, intended for teaching
and experimentation. It is based on the scheduling layer of the Calvin system: every replica receives the same ordered
stream of actions, takes the locks of each action in that order and so reaches the same state without coordinating
with the other replicas on each transaction.

Building TinyCalvin produces two executables: calvin-server runs one node (one partition of one replica) and
calvin-bench drives nodes in process, either to measure them or to check that replicas agree.

The `tinycalvin` module is organized into the following packages under `kv`:

* `action`: actions, their ops and the queue and source they arrive through.
* `lockmgr`: per-key FIFO read/write lock queues.
* `scheduler`: the control loop admitting, dispatching and retiring actions, and the safe version watermark.
* `locality`: which keys live on this machine and which replica masters them.
* `sequencer`: cuts client actions into batches and orders them.
* `executor`: runs dispatched actions against storage and routes replies to clients.
* `storage`: badger, goleveldb and in-memory engines.
* `server`: the HTTP status, metrics and submission API.
* `node`: wires the above into one running machine.
*/
