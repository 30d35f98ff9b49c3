package pagetable

const Fanout = fanout
