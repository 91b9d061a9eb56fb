package ledger

// Contract ABIs for the marketplace and its NFT collection. Only the
// entry points the projector consumes are declared.

const marketplaceABI = `[
  {"type":"function","name":"itemCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"items","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"itemId","type":"uint256"},
    {"name":"nft","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"price","type":"uint256"},
    {"name":"currentOwner","type":"address"},
    {"name":"sold","type":"bool"},
    {"name":"issuer","type":"address"}
  ]},
  {"type":"function","name":"getTotalPrice","stateMutability":"view","inputs":[{"name":"_itemId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getIssuerInfo","stateMutability":"view","inputs":[{"name":"_issuer","type":"address"}],"outputs":[
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"isActive","type":"bool"},
    {"name":"totalItemsCreated","type":"uint256"},
    {"name":"totalSales","type":"uint256"}
  ]},
  {"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"offerCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getOffer","stateMutability":"view","inputs":[{"name":"_offerId","type":"uint256"}],"outputs":[
    {"name":"offerId","type":"uint256"},
    {"name":"itemId","type":"uint256"},
    {"name":"buyer","type":"address"},
    {"name":"price","type":"uint256"},
    {"name":"accepted","type":"bool"},
    {"name":"cancelled","type":"bool"}
  ]},
  {"type":"function","name":"getItemOffers","stateMutability":"view","inputs":[{"name":"_itemId","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"feePercent","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},

  {"type":"function","name":"makeItem","stateMutability":"nonpayable","inputs":[{"name":"_nft","type":"address"},{"name":"_tokenId","type":"uint256"},{"name":"_price","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"purchaseItem","stateMutability":"payable","inputs":[{"name":"_itemId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"makeOffer","stateMutability":"payable","inputs":[{"name":"_itemId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"acceptOffer","stateMutability":"nonpayable","inputs":[{"name":"_offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelOffer","stateMutability":"nonpayable","inputs":[{"name":"_offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addIssuer","stateMutability":"nonpayable","inputs":[{"name":"_issuer","type":"address"},{"name":"_name","type":"string"},{"name":"_description","type":"string"}],"outputs":[]},
  {"type":"function","name":"removeIssuer","stateMutability":"nonpayable","inputs":[{"name":"_issuer","type":"address"}],"outputs":[]},
  {"type":"function","name":"setFeePercent","stateMutability":"nonpayable","inputs":[{"name":"_feePercent","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setPaused","stateMutability":"nonpayable","inputs":[{"name":"_paused","type":"bool"}],"outputs":[]},

  {"type":"event","name":"ItemListed","inputs":[
    {"name":"itemId","type":"uint256","indexed":true},
    {"name":"nft","type":"address","indexed":true},
    {"name":"issuer","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":false},
    {"name":"price","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"Bought","inputs":[
    {"name":"itemId","type":"uint256","indexed":true},
    {"name":"seller","type":"address","indexed":true},
    {"name":"buyer","type":"address","indexed":true},
    {"name":"nft","type":"address","indexed":false},
    {"name":"tokenId","type":"uint256","indexed":false},
    {"name":"price","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"OfferMade","inputs":[
    {"name":"offerId","type":"uint256","indexed":true},
    {"name":"itemId","type":"uint256","indexed":true},
    {"name":"buyer","type":"address","indexed":true},
    {"name":"price","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"OfferCancelled","inputs":[
    {"name":"offerId","type":"uint256","indexed":true},
    {"name":"itemId","type":"uint256","indexed":true},
    {"name":"buyer","type":"address","indexed":true}
  ]},
  {"type":"event","name":"IssuerAdded","inputs":[
    {"name":"issuer","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false}
  ]},
  {"type":"event","name":"IssuerRemoved","inputs":[
    {"name":"issuer","type":"address","indexed":true}
  ]}
]`

const nftABI = `[
  {"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"tokenCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"_tokenURI","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`
