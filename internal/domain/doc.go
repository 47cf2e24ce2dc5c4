// Package domain describes rooms, polls, questions and the events exchanged
// with connected clients, along with the repository and publisher contracts
// the adapters fulfil. It performs no I/O.
package domain
