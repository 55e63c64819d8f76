// Package framework contains shared infrastructure for the test runner that is not specific
// to any one component: the Logger interface and its capturing and prefixing variants, regex
// test filters, and a queue for reordering numbered messages.
//
// The execution engine itself is in the testrun subpackage.
package framework
