/*
Package planetlab resolves a PlanetLab slice name into the SSH
hostnames of its nodes, via the PlanetLab XML-RPC API
(GetSlices/GetNodes). No XML-RPC client exists anywhere in the
retrieved example pack -- this is a minimal, single-purpose codec over
net/http and encoding/xml, covering only the request/response shapes
the two calls this package makes actually need, not a general XML-RPC
client.
*/
package planetlab
