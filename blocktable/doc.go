/*
Package blocktable stores values under strictly increasing uint64 keys in
a compact, read-only table. It backs the feature payload of a map container
level and the page file of a packed spatial tree.

Table

A table contains a series of data blocks followed by an index and a
footer.

    Table layout:
    +---------+---------+---------+-------------+--------+
    | block 1 |   ...   | block n | block index | footer |
    +---------+---------+---------+-------------+--------+

    Block index (one pair per block, both delta encoded after the first):
    +---------------------+-------------------+-------+
    | max key 1 (varint)  | offset 1 (varint) |  ...  |
    +---------------------+-------------------+-------+

    Footer:
    +------------------------+------------------------+------------------+
    | index offset (8 bytes) | entry count (8 bytes)  |  magic (8 bytes) |
    +------------------------+------------------------+------------------+

Block

A block is a run of restart groups, the offsets of all groups but the
first, the group count and a single trailing byte naming the compression.

    +---------+-------+---------+-------------------------+----------------------+-------------+
    | group 1 |  ...  | group n | group offsets (4 bytes) | group count (4 bytes) | compression |
    +---------+-------+---------+-------------------------+----------------------+-------------+

Within a group the first key is stored in full and the following keys as
deltas, each followed by the value length and the value.
*/
package blocktable
